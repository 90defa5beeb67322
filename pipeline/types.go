package pipeline

import (
	"maps"
	"slices"
	"time"
)

// Kind selects how an activity is executed.
type Kind string

const (
	KindHTTPCall Kind = "HttpCall"
	KindForEach  Kind = "ForEach"
)

// Condition is the prerequisite outcome a dependency waits for.
type Condition string

const (
	// Succeeded is satisfied only by a successful prerequisite.
	Succeeded Condition = "Succeeded"
	// Failed is satisfied only by a failed prerequisite; it marks error handlers.
	Failed Condition = "Failed"
	// Completed is satisfied by either outcome but not by a skipped prerequisite.
	Completed Condition = "Completed"
)

// DefaultBatchCount is the ForEach parallelism when batch_count is unset.
const DefaultBatchCount = 20

// Header is one ordered request header. Value is a template.
type Header struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Value string `yaml:"value" json:"value"`
}

// RetryPolicy bounds the attempts of an HttpCall.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts; zero means one.
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=0"`
	Interval    time.Duration `yaml:"interval" json:"interval" validate:"gte=0"`
}

// Attempts returns the effective number of attempts.
func (r RetryPolicy) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Dependency gates an activity on the outcome of another activity.
type Dependency struct {
	Activity  string    `yaml:"activity" json:"activity" validate:"required"`
	Condition Condition `yaml:"condition" json:"condition" validate:"omitempty,oneof=Succeeded Failed Completed"`
}

// Activity is one node of a pipeline.
type Activity struct {
	Name    string        `yaml:"name" json:"name" validate:"required"`
	Kind    Kind          `yaml:"kind" json:"kind" validate:"omitempty,oneof=HttpCall ForEach"`
	Method  string        `yaml:"method" json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL     string        `yaml:"url" json:"url,omitempty"`
	Headers []Header      `yaml:"headers" json:"headers,omitempty" validate:"dive"`
	Body    string        `yaml:"body" json:"body,omitempty"`
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty" validate:"gte=0"`
	Retry   RetryPolicy   `yaml:"retry" json:"retry"`

	DependsOn []Dependency `yaml:"depends_on" json:"depends_on,omitempty" validate:"dive"`

	// ForEach only.
	Items      string     `yaml:"items" json:"items,omitempty"`
	Sequential bool       `yaml:"sequential" json:"sequential,omitempty"`
	BatchCount int        `yaml:"batch_count" json:"batch_count,omitempty" validate:"gte=0"`
	Activities []Activity `yaml:"activities" json:"activities,omitempty" validate:"dive"`
}

// HasFailedDependency reports whether the activity is an error handler.
func (a *Activity) HasFailedDependency() bool {
	for _, d := range a.DependsOn {
		if d.Condition == Failed {
			return true
		}
	}
	return false
}

// BatchSize returns how many ForEach items run concurrently.
func (a *Activity) BatchSize() int {
	switch {
	case a.Sequential:
		return 1
	case a.BatchCount > 0:
		return a.BatchCount
	default:
		return DefaultBatchCount
	}
}

// Pipeline is a named, parameterized DAG of activities.
type Pipeline struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// Folder and Annotations are metadata only.
	Folder      string         `yaml:"folder" json:"folder,omitempty"`
	Annotations []string       `yaml:"annotations" json:"annotations,omitempty"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters,omitempty"`
	Activities  []Activity     `yaml:"activities" json:"activities" validate:"min=1,dive"`
}

// Activity finds a top-level activity by name.
func (p *Pipeline) Activity(name string) (*Activity, bool) {
	for i := range p.Activities {
		if p.Activities[i].Name == name {
			return &p.Activities[i], true
		}
	}
	return nil, false
}

// ApplyDefaults fills the method, kind and dependency conditions that
// definitions may omit.
func (p *Pipeline) ApplyDefaults() {
	applyActivityDefaults(p.Activities)
}

func applyActivityDefaults(acts []Activity) {
	for i := range acts {
		a := &acts[i]
		if a.Kind == "" {
			if a.Items != "" || len(a.Activities) > 0 {
				a.Kind = KindForEach
			} else {
				a.Kind = KindHTTPCall
			}
		}
		if a.Kind == KindHTTPCall && a.Method == "" {
			a.Method = "GET"
		}
		for j := range a.DependsOn {
			if a.DependsOn[j].Condition == "" {
				a.DependsOn[j].Condition = Succeeded
			}
		}
		applyActivityDefaults(a.Activities)
	}
}

// Clone returns a deep copy that shares nothing mutable with p.
func (p *Pipeline) Clone() *Pipeline {
	c := *p
	c.Annotations = slices.Clone(p.Annotations)
	c.Parameters = maps.Clone(p.Parameters)
	c.Activities = cloneActivities(p.Activities)
	return &c
}

// Normalized returns a defaulted deep copy of p.
func (p *Pipeline) Normalized() *Pipeline {
	c := p.Clone()
	c.ApplyDefaults()
	return c
}

func cloneActivities(acts []Activity) []Activity {
	if acts == nil {
		return nil
	}
	out := make([]Activity, len(acts))
	for i, a := range acts {
		a.Headers = slices.Clone(a.Headers)
		a.DependsOn = slices.Clone(a.DependsOn)
		a.Activities = cloneActivities(a.Activities)
		out[i] = a
	}
	return out
}
