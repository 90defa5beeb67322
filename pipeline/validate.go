package pipeline

import (
	"errors"
	"fmt"

	"github.com/kbukum/orchestrator/dag"
	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/validation"
)

// Validate checks the pipeline for definition errors: missing or duplicate
// names, unknown kinds, dangling or self dependencies, cycles, unknown
// template placeholders and malformed ForEach blocks. The returned error is
// an *errors.AppError with code DEFINITION_ERROR listing every issue.
func (p *Pipeline) Validate() error {
	n := p.Normalized()

	v := validation.New()
	v.Merge("", validation.Check(n))

	scope := make(map[string]bool, len(n.Parameters)+len(systemVars))
	for _, s := range systemVars {
		scope[s] = true
	}
	for _, name := range sortedKeys(n.Parameters) {
		if IsReserved(name) {
			v.Addf("parameters."+name, "shadows a built-in variable")
			continue
		}
		scope[name] = true
	}

	validateActivities(v, "activities", n.Activities, scope, false, false)

	if v.HasErrors() {
		return apperrors.Definition(p.Name, v.Messages()...)
	}
	return nil
}

// Graph returns the dependency graph of a set of sibling activities.
func Graph(acts []Activity) *dag.Graph {
	g := &dag.Graph{Nodes: make([]string, 0, len(acts))}
	for _, a := range acts {
		g.Nodes = append(g.Nodes, a.Name)
		for _, d := range a.DependsOn {
			g.Edges = append(g.Edges, dag.Edge{From: d.Activity, To: a.Name})
		}
	}
	return g
}

// validateActivities checks one DAG. onFailedPath is set for the sub-DAG of a
// ForEach that runs as an error handler, where the error variables are bound.
func validateActivities(v *validation.Validator, path string, acts []Activity, scope map[string]bool, inForEach, onFailedPath bool) {
	names := make(map[string]int, len(acts))
	for i, a := range acts {
		if a.Name == "" {
			continue
		}
		if first, dup := names[a.Name]; dup {
			v.Addf(fmt.Sprintf("%s[%d].name", path, i), "duplicate activity name %q (first declared at %s[%d])", a.Name, path, first)
			continue
		}
		names[a.Name] = i
	}

	graphOK := true
	for i := range acts {
		a := &acts[i]
		at := fmt.Sprintf("%s[%d]", path, i)

		seen := map[string]bool{}
		for j, d := range a.DependsOn {
			dp := fmt.Sprintf("%s.depends_on[%d]", at, j)
			switch {
			case d.Activity == "":
				graphOK = false
			case d.Activity == a.Name:
				v.Addf(dp, "activity %q depends on itself", a.Name)
				graphOK = false
			case !has(names, d.Activity):
				v.Addf(dp, "depends on unknown activity %q", d.Activity)
				graphOK = false
			case seen[d.Activity]:
				v.Addf(dp, "dependency on %q listed more than once", d.Activity)
			}
			seen[d.Activity] = true
		}

		allowed := func(name string) bool {
			if scope[name] {
				return true
			}
			if inForEach && (name == VarItem || name == VarItemIndex) {
				return true
			}
			return (onFailedPath || a.HasFailedDependency()) && (name == VarErrorMessage || name == VarFailedActivity)
		}
		checkTemplate := func(field, tmpl string) {
			for _, name := range Placeholders(tmpl) {
				if !allowed(name) {
					v.Addf(at+"."+field, "unknown parameter {%s}", name)
				}
			}
		}

		switch a.Kind {
		case KindHTTPCall:
			v.Required(at+".url", a.URL)
			v.Custom(a.Items == "" && len(a.Activities) == 0, at, "items and activities are only valid for ForEach")
			checkTemplate("url", a.URL)
			for j, h := range a.Headers {
				checkTemplate(fmt.Sprintf("headers[%d].value", j), h.Value)
			}
			checkTemplate("body", a.Body)
		case KindForEach:
			v.Required(at+".items", a.Items)
			v.Custom(len(a.Activities) > 0, at+".activities", "ForEach needs at least one nested activity")
			checkTemplate("items", a.Items)
			if len(a.Activities) > 0 {
				validateActivities(v, at+".activities", a.Activities, scope, true, onFailedPath || a.HasFailedDependency())
			}
		}
	}

	if !graphOK {
		return
	}
	if _, err := dag.BuildLevels(Graph(acts)); err != nil {
		if errors.Is(err, dag.ErrCycle) {
			v.AddError(path, err.Error())
		}
	}
}

func has(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}
