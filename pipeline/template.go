package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// System variables available to every template.
const (
	VarRunID         = "run_id"
	VarPipelineName  = "pipeline_name"
	VarTriggerName   = "trigger_name"
	VarScheduledTime = "scheduled_time"
	VarWindowStart   = "window_start"
	VarWindowEnd     = "window_end"
)

// Variables bound only for activities with a Failed dependency.
const (
	VarErrorMessage   = "error_message"
	VarFailedActivity = "failed_activity"
)

// Variables bound only inside a ForEach sub-DAG.
const (
	VarItem      = "item"
	VarItemIndex = "item_index"
)

var systemVars = []string{
	VarRunID, VarPipelineName, VarTriggerName,
	VarScheduledTime, VarWindowStart, VarWindowEnd,
}

var reservedVars = append(append([]string{}, systemVars...),
	VarErrorMessage, VarFailedActivity, VarItem, VarItemIndex)

// IsReserved reports whether name is bound by the engine and so cannot be
// declared as a pipeline parameter.
func IsReserved(name string) bool {
	for _, r := range reservedVars {
		if r == name {
			return true
		}
	}
	return false
}

// ErrUnresolved is wrapped when a template names a variable with no value.
var ErrUnresolved = errors.New("unresolved placeholder")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the distinct variable names used by tmpl, in order of
// first use. Braces around anything that is not an identifier are literal
// text and are not reported.
func Placeholders(tmpl string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Resolve substitutes every placeholder in tmpl verbatim.
func Resolve(tmpl string, vars map[string]string) (string, error) {
	return substitute(tmpl, vars, false)
}

// ResolveURL substitutes placeholders in a URL template. Values that land in
// the query string are query-escaped; values before the '?' are inserted
// verbatim so a parameter may carry a scheme and host.
func ResolveURL(tmpl string, vars map[string]string) (string, error) {
	q := strings.IndexByte(tmpl, '?')
	if q < 0 {
		return substitute(tmpl, vars, false)
	}
	base, err := substitute(tmpl[:q], vars, false)
	if err != nil {
		return "", err
	}
	query, err := substitute(tmpl[q:], vars, true)
	if err != nil {
		return "", err
	}
	return base + query, nil
}

func substitute(tmpl string, vars map[string]string, escape bool) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		if escape {
			return url.QueryEscape(v)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w {%s}", ErrUnresolved, strings.Join(missing, "}, {"))
	}
	return out, nil
}
