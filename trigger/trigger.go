package trigger

import (
	"sync"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/validation"
)

// Spec is the declarative form of a trigger.
type Spec struct {
	Name      string
	Pipeline  string
	Schedule  Schedule
	TimeZone  string
	StartTime time.Time
	// Activated is the initial state; a persisted state wins over it.
	Activated bool
	// Parameters are templates over scheduled_time, trigger_name and, for
	// tumbling windows, window_start and window_end.
	Parameters map[string]string
}

// Trigger is a loaded scheduling rule. Activation is guarded and changes
// only through Activate and Deactivate.
type Trigger struct {
	spec   Spec
	loc    *time.Location
	anchor time.Time

	mu        sync.RWMutex
	activated bool
}

// defaultAnchor aligns triggers without a start time to midnight of a fixed
// day in their own zone, so "every 5 minute" lands on minute%5 == 0.
func defaultAnchor(loc *time.Location) time.Time {
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, loc)
}

// New validates spec and builds a Trigger.
func New(spec Spec) (*Trigger, error) {
	v := validation.New()
	v.Required("name", spec.Name)
	v.Required("pipeline", spec.Pipeline)

	loc := time.UTC
	if spec.TimeZone != "" {
		l, err := time.LoadLocation(spec.TimeZone)
		if err != nil {
			v.Addf("time_zone", "unknown time zone %q", spec.TimeZone)
		} else {
			loc = l
		}
	}

	if spec.Schedule == nil {
		v.AddError("schedule", "is required")
	} else {
		spec.Schedule.validate(v)
	}

	_, tumbling := spec.Schedule.(TumblingWindow)
	for _, name := range sortedKeys(spec.Parameters) {
		for _, ph := range pipeline.Placeholders(spec.Parameters[name]) {
			if !bindingVar(ph, tumbling) {
				v.Addf("parameters."+name, "unknown parameter {%s}", ph)
			}
		}
	}

	if v.HasErrors() {
		return nil, apperrors.Definition("trigger "+spec.Name, v.Messages()...)
	}

	anchor := defaultAnchor(loc)
	if !spec.StartTime.IsZero() {
		anchor = spec.StartTime.In(loc)
	}
	return &Trigger{spec: spec, loc: loc, anchor: anchor, activated: spec.Activated}, nil
}

func bindingVar(name string, tumbling bool) bool {
	switch name {
	case pipeline.VarScheduledTime, pipeline.VarTriggerName:
		return true
	case pipeline.VarWindowStart, pipeline.VarWindowEnd:
		return tumbling
	}
	return false
}

func (t *Trigger) Name() string                { return t.spec.Name }
func (t *Trigger) Pipeline() string            { return t.spec.Pipeline }
func (t *Trigger) Schedule() Schedule          { return t.spec.Schedule }
func (t *Trigger) Location() *time.Location    { return t.loc }
func (t *Trigger) StartTime() time.Time        { return t.anchor }
func (t *Trigger) Bindings() map[string]string { return t.spec.Parameters }

// Active reports the current activation state.
func (t *Trigger) Active() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activated
}

// setActive flips the flag and reports whether it changed.
func (t *Trigger) setActive(active bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.activated != active
	t.activated = active
	return changed
}

// Latest returns the most recent boundary <= now.
func (t *Trigger) Latest(now time.Time) (time.Time, bool) {
	return t.spec.Schedule.Latest(t.anchor, now)
}

// Next returns the first boundary after now.
func (t *Trigger) Next(now time.Time) time.Time {
	return t.spec.Schedule.Next(t.anchor, now)
}

// Window returns the tumbling window ending at boundary, or nil for other
// schedule kinds.
func (t *Trigger) Window(boundary time.Time) *Window {
	w, ok := t.spec.Schedule.(TumblingWindow)
	if !ok {
		return nil
	}
	win := w.WindowFor(boundary)
	return &win
}

// Vars returns the trigger-time variables for a boundary.
func (t *Trigger) Vars(boundary time.Time) map[string]string {
	vars := map[string]string{
		pipeline.VarTriggerName:   t.spec.Name,
		pipeline.VarScheduledTime: boundary.UTC().Format(time.RFC3339),
	}
	if w := t.Window(boundary); w != nil {
		vars[pipeline.VarWindowStart] = w.Start.UTC().Format(time.RFC3339)
		vars[pipeline.VarWindowEnd] = w.End.UTC().Format(time.RFC3339)
	}
	return vars
}

// Bind resolves the parameter bindings for a boundary.
func (t *Trigger) Bind(boundary time.Time) (map[string]string, error) {
	vars := t.Vars(boundary)
	out := make(map[string]string, len(t.spec.Parameters))
	for name, tmpl := range t.spec.Parameters {
		v, err := pipeline.Resolve(tmpl, vars)
		if err != nil {
			return nil, apperrors.Definition("trigger "+t.spec.Name, "parameters."+name+": "+err.Error())
		}
		out[name] = v
	}
	return out, nil
}

// Retry returns the window retry policy of a tumbling trigger.
func (t *Trigger) Retry() (WindowRetry, bool) {
	w, ok := t.spec.Schedule.(TumblingWindow)
	if !ok {
		return WindowRetry{}, false
	}
	return w.Retry, true
}
