package history

import "time"

// EventKind discriminates Event.
type EventKind string

const (
	EventRunStarted       EventKind = "run_started"
	EventActivityStarted  EventKind = "activity_started"
	EventActivityAttempt  EventKind = "activity_attempt"
	EventActivityFinished EventKind = "activity_finished"
	EventRunFinished      EventKind = "run_finished"
)

// Event is one entry of the history log. Which fields are set depends on
// Kind.
type Event struct {
	// Seq is assigned by the backend and orders events globally.
	Seq   int64     `json:"seq"`
	RunID string    `json:"run_id"`
	Kind  EventKind `json:"kind"`
	At    time.Time `json:"at"`

	// run_started
	Pipeline    string            `json:"pipeline,omitempty"`
	Trigger     string            `json:"trigger,omitempty"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`

	// activity_*
	Activity *ActivityRef `json:"activity,omitempty"`
	Try      *Attempt     `json:"try,omitempty"`
	Partial  bool         `json:"partial,omitempty"`
	HTTPCode *int         `json:"http_status,omitempty"`
	Status   string       `json:"status,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// ActivityRef identifies an activity within a run.
type ActivityRef struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Parent    string `json:"parent,omitempty"`
	ItemIndex *int   `json:"item_index,omitempty"`
	Item      string `json:"item,omitempty"`
}

// Replay folds events into runs, in order of each run's first event. Events
// must be ordered by Seq; events of unknown runs before their run_started are
// still applied so partial logs remain inspectable.
func Replay(events []Event) []*Run {
	var (
		order []*Run
		byID  = make(map[string]*Run)
	)
	for i := range events {
		ev := &events[i]
		run, ok := byID[ev.RunID]
		if !ok {
			run = &Run{ID: ev.RunID, Status: RunRunning, Activities: []ActivityRun{}}
			byID[ev.RunID] = run
			order = append(order, run)
		}
		apply(run, ev)
	}
	return order
}

func apply(run *Run, ev *Event) {
	switch ev.Kind {
	case EventRunStarted:
		run.Pipeline = ev.Pipeline
		run.Trigger = ev.Trigger
		run.ScheduledAt = ev.ScheduledAt
		run.Attempt = ev.Attempt
		run.Parameters = ev.Parameters
		run.StartedAt = ev.At

	case EventRunFinished:
		at := ev.At
		run.EndedAt = &at
		run.Status = RunStatus(ev.Status)
		run.Error = ev.Error

	case EventActivityStarted:
		a := activity(run, ev.Activity)
		at := ev.At
		a.Status = ActivityRunning
		a.StartedAt = &at

	case EventActivityAttempt:
		a := activity(run, ev.Activity)
		if ev.Try != nil {
			a.Attempts = append(a.Attempts, *ev.Try)
			a.AttemptCount = len(a.Attempts)
			a.HTTPStatus = ev.Try.HTTPStatus
		}

	case EventActivityFinished:
		a := activity(run, ev.Activity)
		at := ev.At
		a.EndedAt = &at
		a.Status = ActivityStatus(ev.Status)
		a.Error = ev.Error
		a.Partial = ev.Partial
		if ev.HTTPCode != nil {
			a.HTTPStatus = ev.HTTPCode
		}
	}
}

func activity(run *Run, ref *ActivityRef) *ActivityRun {
	if ref == nil {
		ref = &ActivityRef{}
	}
	if a := run.Activity(ref.Key); a != nil {
		return a
	}
	run.Activities = append(run.Activities, ActivityRun{
		Key:       ref.Key,
		Name:      ref.Name,
		Parent:    ref.Parent,
		ItemIndex: ref.ItemIndex,
		Item:      ref.Item,
		Status:    ActivityPending,
	})
	return &run.Activities[len(run.Activities)-1]
}
