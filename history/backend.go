package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Backend stores the event log.
type Backend interface {
	// Append stores ev and assigns its Seq.
	Append(ctx context.Context, ev *Event) error

	// Events returns all events of the given runs ordered by Seq.
	Events(ctx context.Context, runIDs ...string) ([]Event, error)

	// Starts returns the run_started events matching f ordered by At. With a
	// positive f.Limit only the newest f.Limit matches are returned.
	Starts(ctx context.Context, f StartFilter) ([]Event, error)
}

// StartFilter selects runs by their run_started event. Zero fields match
// everything; From is inclusive and To exclusive.
type StartFilter struct {
	Pipeline    string
	Trigger     string
	ScheduledAt *time.Time
	From        *time.Time
	To          *time.Time
	// Status keeps runs whose run_finished carries it; RunRunning keeps runs
	// that have not finished.
	Status RunStatus
	Limit  int
}

func (f StartFilter) match(ev *Event) bool {
	switch {
	case ev.Kind != EventRunStarted:
		return false
	case f.Pipeline != "" && ev.Pipeline != f.Pipeline:
		return false
	case f.Trigger != "" && ev.Trigger != f.Trigger:
		return false
	case f.ScheduledAt != nil && (ev.ScheduledAt == nil || !ev.ScheduledAt.Equal(*f.ScheduledAt)):
		return false
	case f.From != nil && ev.At.Before(*f.From):
		return false
	case f.To != nil && !ev.At.Before(*f.To):
		return false
	}
	return true
}

// MemoryBackend keeps the log in a slice.
type MemoryBackend struct {
	mu       sync.RWMutex
	events   []Event
	byRun    map[string][]int
	finished map[string]RunStatus
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory log.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byRun:    make(map[string][]int),
		finished: make(map[string]RunStatus),
	}
}

func (b *MemoryBackend) Append(_ context.Context, ev *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev.Seq = int64(len(b.events) + 1)
	b.byRun[ev.RunID] = append(b.byRun[ev.RunID], len(b.events))
	b.events = append(b.events, *ev)
	if ev.Kind == EventRunFinished {
		b.finished[ev.RunID] = RunStatus(ev.Status)
	}
	return nil
}

func (b *MemoryBackend) Events(_ context.Context, runIDs ...string) ([]Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, id := range runIDs {
		for _, i := range b.byRun[id] {
			out = append(out, b.events[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (b *MemoryBackend) Starts(_ context.Context, f StartFilter) ([]Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for i := range b.events {
		if f.match(&b.events[i]) && (f.Status == "" || b.statusOf(b.events[i].RunID) == f.Status) {
			out = append(out, b.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

func (b *MemoryBackend) statusOf(runID string) RunStatus {
	if st, ok := b.finished[runID]; ok {
		return st
	}
	return RunRunning
}
