package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EvaluateItems turns a ForEach items expression into the ordered item list.
//
// A bare "{name}" naming a list parameter yields that list. Anything else is
// resolved as a template; a JSON array result is decoded, and any other
// string is split on commas with blank entries dropped.
func EvaluateItems(expr string, b Bound) ([]string, error) {
	trimmed := strings.TrimSpace(expr)
	if names := Placeholders(trimmed); len(names) == 1 && trimmed == "{"+names[0]+"}" {
		if list, ok := b.Lists[names[0]]; ok {
			return list, nil
		}
	}

	resolved, err := Resolve(trimmed, b.Vars)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	resolved = strings.TrimSpace(resolved)

	if strings.HasPrefix(resolved, "[") {
		var raw []any
		if err := json.Unmarshal([]byte(resolved), &raw); err != nil {
			return nil, fmt.Errorf("items: invalid JSON array: %w", err)
		}
		items := make([]string, len(raw))
		for i, v := range raw {
			items[i] = Stringify(v)
		}
		return items, nil
	}

	var items []string
	for _, part := range strings.Split(resolved, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items, nil
}
