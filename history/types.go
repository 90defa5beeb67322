package history

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning        RunStatus = "Running"
	RunSucceeded      RunStatus = "Succeeded"
	RunFailed         RunStatus = "Failed"
	RunPartialSuccess RunStatus = "PartialSuccess"
)

// Terminal reports whether s is a final status.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunPartialSuccess
}

// ParseRunStatus accepts a status name, case-sensitively.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch st := RunStatus(s); st {
	case RunRunning, RunSucceeded, RunFailed, RunPartialSuccess:
		return st, true
	}
	return "", false
}

// ActivityStatus is the lifecycle state of one activity within a run.
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "Pending"
	ActivityRunning   ActivityStatus = "Running"
	ActivitySucceeded ActivityStatus = "Succeeded"
	ActivityFailed    ActivityStatus = "Failed"
	ActivitySkipped   ActivityStatus = "Skipped"
)

// Terminal reports whether s is a final status.
func (s ActivityStatus) Terminal() bool {
	return s == ActivitySucceeded || s == ActivityFailed || s == ActivitySkipped
}

// Attempt is one HTTP attempt of an activity.
type Attempt struct {
	Number     int       `json:"number"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	HTTPStatus *int      `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ActivityRun is the materialized outcome of one activity, or of one
// ForEach item's nested activity.
type ActivityRun struct {
	// Key is unique within the run: the activity name, or
	// "parent[index].name" for a ForEach item.
	Key       string `json:"key"`
	Name      string `json:"name"`
	Parent    string `json:"parent,omitempty"`
	ItemIndex *int   `json:"item_index,omitempty"`
	Item      string `json:"item,omitempty"`

	Status     ActivityStatus `json:"status"`
	HTTPStatus *int           `json:"http_status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Partial    bool           `json:"partial,omitempty"`

	AttemptCount int       `json:"attempt_count"`
	Attempts     []Attempt `json:"attempts,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Run is the materialized record of one pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Pipeline    string     `json:"pipeline"`
	Trigger     string     `json:"trigger,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	// Attempt is the tumbling-window retry ordinal, 0 for the first run.
	Attempt int `json:"attempt"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`

	Parameters map[string]string `json:"parameters,omitempty"`
	Activities []ActivityRun     `json:"activities"`
}

// Activity returns the activity with the given key, or nil.
func (r *Run) Activity(key string) *ActivityRun {
	for i := range r.Activities {
		if r.Activities[i].Key == key {
			return &r.Activities[i]
		}
	}
	return nil
}

// Duration is the run's wall time, up to now when still running.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}
