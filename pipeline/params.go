package pipeline

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
)

// Bound is the result of binding supplied values against declared parameters.
type Bound struct {
	// Vars holds every parameter as its template string.
	Vars map[string]string
	// Lists holds parameters whose value is still a declared list default, so
	// a ForEach over "{name}" can iterate it without re-parsing.
	Lists map[string][]string
}

// Bind resolves run parameters: supplied values override declared defaults.
// Supplying an undeclared parameter or leaving a parameter without a default
// unset is an error.
func (p *Pipeline) Bind(supplied map[string]string) (Bound, error) {
	b := Bound{
		Vars:  make(map[string]string, len(p.Parameters)),
		Lists: make(map[string][]string),
	}

	var issues []string
	for _, name := range sortedKeys(supplied) {
		if _, ok := p.Parameters[name]; !ok {
			issues = append(issues, fmt.Sprintf("unknown parameter %q", name))
			continue
		}
		b.Vars[name] = supplied[name]
	}

	for _, name := range sortedKeys(p.Parameters) {
		if _, ok := b.Vars[name]; ok {
			continue
		}
		def := p.Parameters[name]
		if def == nil {
			issues = append(issues, fmt.Sprintf("parameter %q has no default and was not supplied", name))
			continue
		}
		if list, ok := listValue(def); ok {
			b.Lists[name] = list
		}
		b.Vars[name] = Stringify(def)
	}

	if len(issues) > 0 {
		return Bound{}, apperrors.Validation(fmt.Sprintf("pipeline %q: %s", p.Name, strings.Join(issues, "; "))).
			WithDetail("issues", issues)
	}
	return b, nil
}

// Stringify renders a parameter value the way templates see it. Lists are
// comma-joined and timestamps use RFC 3339.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func listValue(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t), true
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = Stringify(e)
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// With returns a copy of b with extra variables layered over Vars.
func (b Bound) With(extra map[string]string) Bound {
	vars := make(map[string]string, len(b.Vars)+len(extra))
	for k, v := range b.Vars {
		vars[k] = v
	}
	for k, v := range extra {
		vars[k] = v
	}
	return Bound{Vars: vars, Lists: b.Lists}
}
