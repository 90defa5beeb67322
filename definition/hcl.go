package definition

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/trigger"
)

type hclFile struct {
	Pipelines []hclPipeline `hcl:"pipeline,block"`
	Triggers  []hclTrigger  `hcl:"trigger,block"`
}

type hclPipeline struct {
	Name        string        `hcl:"name,label"`
	Folder      string        `hcl:"folder,optional"`
	Annotations []string      `hcl:"annotations,optional"`
	Parameters  cty.Value     `hcl:"parameters,optional"`
	Activities  []hclActivity `hcl:"activity,block"`
}

type hclActivity struct {
	Name       string          `hcl:"name,label"`
	Kind       string          `hcl:"kind,optional"`
	Method     string          `hcl:"method,optional"`
	URL        string          `hcl:"url,optional"`
	Body       string          `hcl:"body,optional"`
	Timeout    string          `hcl:"timeout,optional"`
	Items      string          `hcl:"items,optional"`
	Sequential bool            `hcl:"sequential,optional"`
	BatchCount int             `hcl:"batch_count,optional"`
	Headers    []hclHeader     `hcl:"header,block"`
	Retry      *hclRetry       `hcl:"retry,block"`
	DependsOn  []hclDependency `hcl:"depends_on,block"`
	Activities []hclActivity   `hcl:"activity,block"`
}

type hclHeader struct {
	Name  string `hcl:"name,label"`
	Value string `hcl:"value"`
}

type hclRetry struct {
	MaxAttempts int    `hcl:"max_attempts,optional"`
	Interval    string `hcl:"interval,optional"`
}

type hclDependency struct {
	Activity  string `hcl:"activity,label"`
	Condition string `hcl:"condition,optional"`
}

type hclTrigger struct {
	Name       string            `hcl:"name,label"`
	Pipeline   string            `hcl:"pipeline"`
	Activated  bool              `hcl:"activated,optional"`
	TimeZone   string            `hcl:"time_zone,optional"`
	StartTime  string            `hcl:"start_time,optional"`
	Parameters map[string]string `hcl:"parameters,optional"`
	Interval   *hclInterval      `hcl:"interval,block"`
	Tumbling   *hclTumbling      `hcl:"tumbling_window,block"`
	DailyAt    *hclDailyAt       `hcl:"daily_at,block"`
}

type hclInterval struct {
	Unit  string `hcl:"unit"`
	Every int    `hcl:"every"`
}

type hclTumbling struct {
	Interval string          `hcl:"interval"`
	Retry    *hclWindowRetry `hcl:"retry,block"`
}

type hclWindowRetry struct {
	Count    int    `hcl:"count,optional"`
	Interval string `hcl:"interval,optional"`
}

type hclDailyAt struct {
	Hour   int `hcl:"hour"`
	Minute int `hcl:"minute,optional"`
}

// envFunc reads an environment variable with an optional fallback.
var envFunc = function.New(&function.Spec{
	Params:   []function.Parameter{{Name: "name", Type: cty.String}},
	VarParam: &function.Parameter{Name: "default", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return cty.NilVal, fmt.Errorf("environment variable %q is not set", args[0].AsString())
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":      envFunc,
			"upper":    stdlib.UpperFunc,
			"lower":    stdlib.LowerFunc,
			"format":   stdlib.FormatFunc,
			"join":     stdlib.JoinFunc,
			"split":    stdlib.SplitFunc,
			"coalesce": stdlib.CoalesceFunc,
		},
	}
}

// ParseHCL decodes an HCL definition file.
func ParseHCL(filename string, data []byte) (*Set, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, apperrors.Definition(filename, diagMessages(diags)...)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &root); diags.HasErrors() {
		return nil, apperrors.Definition(filename, diagMessages(diags)...)
	}

	var issues []string
	set := &Set{}
	for _, hp := range root.Pipelines {
		p, errs := hp.pipeline()
		issues = append(issues, errs...)
		set.Pipelines = append(set.Pipelines, p)
	}
	for _, ht := range root.Triggers {
		spec, errs := ht.spec()
		issues = append(issues, errs...)
		set.Triggers = append(set.Triggers, spec)
	}
	if len(issues) > 0 {
		return nil, apperrors.Definition(filename, issues...)
	}
	return set, nil
}

func diagMessages(diags hcl.Diagnostics) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Error())
	}
	return out
}

func (hp hclPipeline) pipeline() (*pipeline.Pipeline, []string) {
	p := &pipeline.Pipeline{
		Name:        hp.Name,
		Folder:      hp.Folder,
		Annotations: hp.Annotations,
	}
	var issues []string

	if !hp.Parameters.IsNull() {
		native, err := ctyToNative(hp.Parameters)
		if err != nil {
			issues = append(issues, fmt.Sprintf("pipeline %q parameters: %v", hp.Name, err))
		} else if m, ok := native.(map[string]any); ok {
			p.Parameters = m
		} else {
			issues = append(issues, fmt.Sprintf("pipeline %q parameters: expected an object", hp.Name))
		}
	}

	p.Activities = activities(hp.Name, hp.Activities, &issues)
	return p, issues
}

func activities(owner string, in []hclActivity, issues *[]string) []pipeline.Activity {
	out := make([]pipeline.Activity, 0, len(in))
	for _, ha := range in {
		a := pipeline.Activity{
			Name:       ha.Name,
			Kind:       pipeline.Kind(ha.Kind),
			Method:     ha.Method,
			URL:        ha.URL,
			Body:       ha.Body,
			Items:      ha.Items,
			Sequential: ha.Sequential,
			BatchCount: ha.BatchCount,
		}
		at := owner + "." + ha.Name
		a.Timeout = duration(at+".timeout", ha.Timeout, issues)
		for _, h := range ha.Headers {
			a.Headers = append(a.Headers, pipeline.Header{Name: h.Name, Value: h.Value})
		}
		if ha.Retry != nil {
			a.Retry = pipeline.RetryPolicy{
				MaxAttempts: ha.Retry.MaxAttempts,
				Interval:    duration(at+".retry.interval", ha.Retry.Interval, issues),
			}
		}
		for _, d := range ha.DependsOn {
			a.DependsOn = append(a.DependsOn, pipeline.Dependency{Activity: d.Activity, Condition: pipeline.Condition(d.Condition)})
		}
		if len(ha.Activities) > 0 {
			a.Activities = activities(at, ha.Activities, issues)
		}
		out = append(out, a)
	}
	return out
}

func (ht hclTrigger) spec() (trigger.Spec, []string) {
	spec := trigger.Spec{
		Name:       ht.Name,
		Pipeline:   ht.Pipeline,
		Activated:  ht.Activated,
		TimeZone:   ht.TimeZone,
		Parameters: ht.Parameters,
	}
	var issues []string
	if ht.StartTime != "" {
		t, err := time.Parse(time.RFC3339, ht.StartTime)
		if err != nil {
			issues = append(issues, fmt.Sprintf("trigger %q start_time: %v", ht.Name, err))
		}
		spec.StartTime = t
	}

	var kinds []trigger.Schedule
	if s := ht.Interval; s != nil {
		kinds = append(kinds, trigger.Interval{Unit: trigger.Unit(s.Unit), Every: s.Every})
	}
	if s := ht.Tumbling; s != nil {
		w := trigger.TumblingWindow{Interval: duration("trigger "+ht.Name+" interval", s.Interval, &issues)}
		if s.Retry != nil {
			w.Retry = trigger.WindowRetry{
				Count:    s.Retry.Count,
				Interval: duration("trigger "+ht.Name+" retry.interval", s.Retry.Interval, &issues),
			}
		}
		kinds = append(kinds, w)
	}
	if s := ht.DailyAt; s != nil {
		kinds = append(kinds, trigger.DailyAt{Hour: s.Hour, Minute: s.Minute})
	}
	if len(kinds) != 1 {
		issues = append(issues, fmt.Sprintf("trigger %q: needs exactly one of interval, tumbling_window, daily_at (got %d)", ht.Name, len(kinds)))
	} else {
		spec.Schedule = kinds[0]
	}
	return spec, issues
}

func duration(field, s string, issues *[]string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		*issues = append(*issues, fmt.Sprintf("%s: %v", field, err))
	}
	return d
}

// ctyToNative converts a cty value into plain Go values: strings, ints for
// whole numbers, float64, bool, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			n, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			n, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
