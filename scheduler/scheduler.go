package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/trigger"
)

// Starter launches runs. *executor.Executor implements it.
type Starter interface {
	Start(ctx context.Context, p *pipeline.Pipeline, req executor.Request) (*executor.Handle, error)
}

// Pipelines resolves a trigger's pipeline. *pipeline.Catalog implements it.
type Pipelines interface {
	Lookup(name string) (*pipeline.Pipeline, error)
}

// Fired is one run started by a tick.
type Fired struct {
	Trigger     string    `json:"trigger"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Attempt     int       `json:"attempt"`
	RunID       string    `json:"run_id"`
}

// TriggerInfo is a trigger listing entry.
type TriggerInfo struct {
	Name     string     `json:"name"`
	Pipeline string     `json:"pipeline"`
	Kind     string     `json:"kind"`
	Schedule string     `json:"schedule"`
	TimeZone string     `json:"time_zone"`
	Active   bool       `json:"active"`
	Next     *time.Time `json:"next,omitempty"`
}

// windowKey identifies one tumbling window of one trigger.
type windowKey struct {
	trigger  string
	boundary int64
}

// retry is a pending re-run of a failed window.
type retry struct {
	boundary time.Time
	attempt  int
	due      time.Time
}

// Scheduler owns trigger due-state and fires runs.
type Scheduler struct {
	cfg       Config
	triggers  *trigger.Registry
	pipelines Pipelines
	exec      Starter
	history   *history.History
	metrics   *observability.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	last    map[string]time.Time
	retries map[windowKey]retry

	watchers sync.WaitGroup

	loopMu sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records fired and suppressed counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides time.Now for the Run loop and listings.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(cfg Config, triggers *trigger.Registry, pipelines Pipelines, exec Starter, h *history.History, log *logger.Logger, opts ...Option) *Scheduler {
	cfg.ApplyDefaults()
	s := &Scheduler{
		cfg:       cfg,
		triggers:  triggers,
		pipelines: pipelines,
		exec:      exec,
		history:   h,
		metrics:   observability.NoopMetrics(),
		log:       log.WithComponent("scheduler"),
		now:       time.Now,
		last:      make(map[string]time.Time),
		retries:   make(map[windowKey]retry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick evaluates all triggers at now and returns the runs it started.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Fired {
	var fired []Fired

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.triggers.List() {
		name := t.Name()
		if !t.Active() {
			delete(s.last, name)
			continue
		}

		last, seen := s.last[name]
		s.last[name] = now

		b, ok := t.Latest(now)
		if !ok {
			continue
		}
		if seen && !b.After(last) {
			continue
		}
		if !seen && now.Sub(b) >= s.cfg.TickInterval {
			continue
		}
		if f, ok := s.fire(ctx, t, b, 0); ok {
			fired = append(fired, f)
		}
	}

	return append(fired, s.dueRetries(ctx, now)...)
}

// dueRetries fires window retries whose wait has elapsed. Retries of a
// trigger that is no longer active are dropped.
func (s *Scheduler) dueRetries(ctx context.Context, now time.Time) []Fired {
	keys := make([]windowKey, 0, len(s.retries))
	for k, r := range s.retries {
		if !r.due.After(now) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].trigger != keys[j].trigger {
			return keys[i].trigger < keys[j].trigger
		}
		return keys[i].boundary < keys[j].boundary
	})

	var fired []Fired
	for _, k := range keys {
		r := s.retries[k]
		delete(s.retries, k)

		t, ok := s.triggers.Get(k.trigger)
		if !ok || !t.Active() {
			s.log.Info("window retry dropped, trigger inactive", logger.Fields(
				logger.FieldTrigger, k.trigger, logger.FieldScheduled, r.boundary, logger.FieldAttempt, r.attempt))
			continue
		}
		if f, ok := s.fire(ctx, t, r.boundary, r.attempt); ok {
			fired = append(fired, f)
		}
	}
	return fired
}

// fire starts a run for boundary b. First attempts are suppressed when
// history already has a run for the boundary.
func (s *Scheduler) fire(ctx context.Context, t *trigger.Trigger, b time.Time, attempt int) (Fired, bool) {
	name := t.Name()
	fields := logger.Fields(logger.FieldTrigger, name, logger.FieldScheduled, b.UTC(), logger.FieldAttempt, attempt)

	ctx, span := observability.StartSpan(ctx, "trigger "+name,
		attribute.String(observability.AttrTrigger, name),
		attribute.Int(observability.AttrAttempt, attempt))
	defer span.End()

	if attempt == 0 {
		exists, err := s.history.HasRunForBoundary(ctx, name, b)
		if err != nil {
			observability.SetSpanError(span, err)
			s.log.Error("boundary check failed", logger.MergeWithError(fields, err))
			return Fired{}, false
		}
		if exists {
			s.metrics.Suppressed(ctx, name)
			s.log.Debug("boundary already has a run, suppressed", fields)
			return Fired{}, false
		}
	}

	params, err := t.Bind(b)
	if err != nil {
		observability.SetSpanError(span, err)
		s.log.Error("trigger parameters failed to resolve", logger.MergeWithError(fields, err))
		return Fired{}, false
	}
	p, err := s.pipelines.Lookup(t.Pipeline())
	if err != nil {
		observability.SetSpanError(span, err)
		s.log.Error("trigger pipeline not found", logger.MergeWithError(fields, err))
		return Fired{}, false
	}

	scheduled := b.UTC()
	handle, err := s.exec.Start(ctx, p, executor.Request{
		Parameters:  params,
		Trigger:     name,
		ScheduledAt: &scheduled,
		Window:      t.Window(b),
		Attempt:     attempt,
	})
	if err != nil {
		observability.SetSpanError(span, err)
		s.log.Error("trigger run failed to start", logger.MergeWithError(fields, err))
		return Fired{}, false
	}

	s.metrics.Fired(ctx, name)
	fields[logger.FieldRunID] = handle.ID
	s.log.Info("trigger fired", fields)

	if policy, ok := t.Retry(); ok {
		s.watch(ctx, name, scheduled, attempt, policy, handle)
	}
	return Fired{Trigger: name, ScheduledAt: scheduled, Attempt: attempt, RunID: handle.ID}, true
}

// watch queues a retry when a window run fails and attempts remain. It gives
// up when ctx ends; the run itself is left to the executor.
func (s *Scheduler) watch(ctx context.Context, name string, boundary time.Time, attempt int, policy trigger.WindowRetry, h *executor.Handle) {
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		select {
		case <-h.Done():
		case <-ctx.Done():
			s.log.Debug("window watch stopped", logger.Fields(logger.FieldTrigger, name,
				logger.FieldScheduled, boundary, logger.FieldRunID, h.ID))
			return
		}
		res := h.Result()
		if res == nil || res.Status != history.RunFailed {
			return
		}
		fields := logger.Fields(logger.FieldTrigger, name, logger.FieldScheduled, boundary,
			logger.FieldAttempt, attempt, logger.FieldRunID, res.RunID)
		if attempt >= policy.Count {
			s.log.Error("window permanently failed", fields)
			return
		}
		due := res.EndedAt.Add(policy.Interval)
		s.mu.Lock()
		s.retries[windowKey{trigger: name, boundary: boundary.UnixNano()}] = retry{
			boundary: boundary,
			attempt:  attempt + 1,
			due:      due,
		}
		s.mu.Unlock()
		fields["due"] = due
		s.log.Warn("window failed, retry queued", fields)
	}()
}

// Activate turns a trigger on. It is treated as newly seen on the next tick.
func (s *Scheduler) Activate(ctx context.Context, name string) error {
	if err := s.triggers.Activate(ctx, name); err != nil {
		return err
	}
	s.forget(name)
	return nil
}

// Deactivate turns a trigger off and forgets its last evaluation.
func (s *Scheduler) Deactivate(ctx context.Context, name string) error {
	if err := s.triggers.Deactivate(ctx, name); err != nil {
		return err
	}
	s.forget(name)
	return nil
}

func (s *Scheduler) forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, name)
}

// Triggers lists all triggers with their activation and next boundary.
func (s *Scheduler) Triggers() []TriggerInfo {
	now := s.now()
	list := s.triggers.List()
	out := make([]TriggerInfo, 0, len(list))
	for _, t := range list {
		info := TriggerInfo{
			Name:     t.Name(),
			Pipeline: t.Pipeline(),
			Kind:     t.Schedule().Kind(),
			Schedule: trigger.Describe(t.Schedule()),
			TimeZone: t.Location().String(),
			Active:   t.Active(),
		}
		if info.Active {
			next := t.Next(now).UTC()
			info.Next = &next
		}
		out = append(out, info)
	}
	return out
}

// Run ticks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	s.log.Info("scheduler started", logger.Fields("tick_interval", s.cfg.TickInterval.String()))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

func (s *Scheduler) pendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retries)
}
