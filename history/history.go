package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/logger"
)

// ErrRunClosed is returned when appending to a run that is not open in this
// process: finished, or never started here.
var ErrRunClosed = errors.New("history: run is closed")

// DefaultQueryLimit caps Query when Filter.Limit is zero.
const DefaultQueryLimit = 100

// RunStart describes a new run.
type RunStart struct {
	ID          string
	Pipeline    string
	Trigger     string
	ScheduledAt *time.Time
	Attempt     int
	Parameters  map[string]string
	StartedAt   time.Time
}

// ActivityEnd is the terminal outcome of an activity.
type ActivityEnd struct {
	Status     ActivityStatus
	HTTPStatus *int
	Error      string
	Partial    bool
	At         time.Time
}

// Filter selects runs for Query. Zero fields match everything. From and To
// bound StartedAt, From inclusive and To exclusive.
type Filter struct {
	Pipeline    string
	Trigger     string
	Status      RunStatus
	ScheduledAt *time.Time
	From        *time.Time
	To          *time.Time
	Limit       int
}

// History records and queries runs.
type History struct {
	backend Backend
	log     *logger.Logger

	mu   sync.Mutex
	open map[string]struct{}
}

// New creates a History over backend.
func New(backend Backend, log *logger.Logger) *History {
	return &History{
		backend: backend,
		log:     log.WithComponent("history"),
		open:    make(map[string]struct{}),
	}
}

func (h *History) isOpen(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.open[runID]
	return ok
}

func (h *History) append(ctx context.Context, ev *Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	ev.At = ev.At.UTC()
	if err := h.backend.Append(ctx, ev); err != nil {
		return fmt.Errorf("history: append %s for run %s: %w", ev.Kind, ev.RunID, err)
	}
	return nil
}

// RecordRunStart opens a run.
func (h *History) RecordRunStart(ctx context.Context, rs RunStart) error {
	h.mu.Lock()
	if _, dup := h.open[rs.ID]; dup {
		h.mu.Unlock()
		return apperrors.Conflict(fmt.Sprintf("run %s is already open", rs.ID))
	}
	h.open[rs.ID] = struct{}{}
	h.mu.Unlock()

	var scheduled *time.Time
	if rs.ScheduledAt != nil {
		t := rs.ScheduledAt.UTC()
		scheduled = &t
	}
	err := h.append(ctx, &Event{
		RunID:       rs.ID,
		Kind:        EventRunStarted,
		At:          rs.StartedAt,
		Pipeline:    rs.Pipeline,
		Trigger:     rs.Trigger,
		ScheduledAt: scheduled,
		Attempt:     rs.Attempt,
		Parameters:  rs.Parameters,
	})
	if err != nil {
		h.mu.Lock()
		delete(h.open, rs.ID)
		h.mu.Unlock()
	}
	return err
}

// RecordActivityStart marks an activity Running.
func (h *History) RecordActivityStart(ctx context.Context, runID string, ref ActivityRef, at time.Time) error {
	if !h.isOpen(runID) {
		return ErrRunClosed
	}
	return h.append(ctx, &Event{RunID: runID, Kind: EventActivityStarted, At: at, Activity: &ref})
}

// RecordActivityAttempt appends one finished HTTP attempt.
func (h *History) RecordActivityAttempt(ctx context.Context, runID string, ref ActivityRef, a Attempt) error {
	if !h.isOpen(runID) {
		return ErrRunClosed
	}
	a.StartedAt, a.EndedAt = a.StartedAt.UTC(), a.EndedAt.UTC()
	return h.append(ctx, &Event{RunID: runID, Kind: EventActivityAttempt, At: a.EndedAt, Activity: &ref, Try: &a})
}

// RecordActivityEnd records an activity's terminal status, including Skipped
// activities that never started.
func (h *History) RecordActivityEnd(ctx context.Context, runID string, ref ActivityRef, end ActivityEnd) error {
	if !h.isOpen(runID) {
		return ErrRunClosed
	}
	if !end.Status.Terminal() {
		return apperrors.InvalidInput("status", fmt.Sprintf("%s is not terminal", end.Status))
	}
	return h.append(ctx, &Event{
		RunID:    runID,
		Kind:     EventActivityFinished,
		At:       end.At,
		Activity: &ref,
		Status:   string(end.Status),
		HTTPCode: end.HTTPStatus,
		Error:    end.Error,
		Partial:  end.Partial,
	})
}

// RecordRunEnd closes a run with a terminal status.
func (h *History) RecordRunEnd(ctx context.Context, runID string, status RunStatus, errMsg string, at time.Time) error {
	if !status.Terminal() {
		return apperrors.InvalidInput("status", fmt.Sprintf("%s is not terminal", status))
	}
	h.mu.Lock()
	if _, ok := h.open[runID]; !ok {
		h.mu.Unlock()
		return ErrRunClosed
	}
	delete(h.open, runID)
	h.mu.Unlock()

	return h.append(ctx, &Event{RunID: runID, Kind: EventRunFinished, At: at, Status: string(status), Error: errMsg})
}

// GetRun returns the materialized run.
func (h *History) GetRun(ctx context.Context, id string) (*Run, error) {
	events, err := h.backend.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	runs := Replay(events)
	if len(runs) == 0 {
		return nil, apperrors.NotFound("run", id)
	}
	return runs[0], nil
}

// Query returns matching runs ordered by StartedAt ascending. When more than
// Limit match, the most recent Limit are returned.
func (h *History) Query(ctx context.Context, f Filter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	runs, err := h.load(ctx, StartFilter{
		Pipeline:    f.Pipeline,
		Trigger:     f.Trigger,
		ScheduledAt: f.ScheduledAt,
		From:        f.From,
		To:          f.To,
		Status:      f.Status,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, *r)
	}
	return out, nil
}

// LastSuccessfulRun returns the most recently started Succeeded run of
// trigger, or nil when there is none.
func (h *History) LastSuccessfulRun(ctx context.Context, trigger string) (*Run, error) {
	runs, err := h.load(ctx, StartFilter{Trigger: trigger, Status: RunSucceeded, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[len(runs)-1], nil
}

// HasRunForBoundary reports whether trigger already has a run, in any status,
// for the scheduled boundary.
func (h *History) HasRunForBoundary(ctx context.Context, trigger string, boundary time.Time) (bool, error) {
	b := boundary.UTC()
	starts, err := h.backend.Starts(ctx, StartFilter{Trigger: trigger, ScheduledAt: &b})
	if err != nil {
		return false, err
	}
	return len(starts) > 0, nil
}

// load materializes the runs whose start matches f, ordered by StartedAt.
func (h *History) load(ctx context.Context, f StartFilter) ([]*Run, error) {
	starts, err := h.backend.Starts(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		return nil, nil
	}
	ids := make([]string, len(starts))
	for i, s := range starts {
		ids[i] = s.RunID
	}
	events, err := h.backend.Events(ctx, ids...)
	if err != nil {
		return nil, err
	}
	runs := Replay(events)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}
