package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/resilience"
	"github.com/kbukum/orchestrator/trigger"
)

// Doer sends one HTTP request. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// Request carries what a run is started with. Trigger, ScheduledAt and
// Window are empty for manual runs.
type Request struct {
	Parameters  map[string]string
	Trigger     string
	ScheduledAt *time.Time
	Window      *trigger.Window
	// Attempt is the tumbling-window retry ordinal, 0 for the first run.
	Attempt int
}

// Result is the final state of a run.
type Result struct {
	RunID     string            `json:"run_id"`
	Status    history.RunStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
}

// Handle follows a started run.
type Handle struct {
	ID string

	done   chan struct{}
	result *Result
}

// Done is closed when the run is terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome, or nil while the run is still going.
func (h *Handle) Result() *Result {
	select {
	case <-h.done:
		return h.result
	default:
		return nil
	}
}

// Wait blocks until the run ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records run, activity and attempt instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor starts and tracks runs.
type Executor struct {
	cfg      Config
	client   Doer
	history  *history.History
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	runs    map[string]*run
	closing bool
	wg      sync.WaitGroup
}

// New creates an Executor. client performs activity requests and h records
// every transition.
func New(cfg Config, client Doer, h *history.History, log *logger.Logger, opts ...Option) *Executor {
	cfg.ApplyDefaults()
	e := &Executor{
		cfg:     cfg,
		client:  client,
		history: h,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "executor",
			MaxConcurrent: cfg.MaxConcurrency,
		}),
		metrics: observability.NoopMetrics(),
		log:     log.WithComponent("executor"),
		now:     time.Now,
		runs:    make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates p, binds req.Parameters and launches a run. Definition,
// parameter and items errors fail before anything is recorded.
func (e *Executor) Start(ctx context.Context, p *pipeline.Pipeline, req Request) (*Handle, error) {
	if e.isClosing() {
		return nil, apperrors.ServiceUnavailable("executor")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Normalized()
	bound, err := n.Bind(req.Parameters)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	started := e.now().UTC()
	root := scope{bound: bound.With(systemVars(id, n.Name, req, started))}

	// Top-level items are resolved now so a bad expression never creates a run.
	// An error handler's items depend on the failure, so they are only checked
	// here and evaluated again at dispatch.
	root.items = make(map[string][]string)
	for i := range n.Activities {
		a := &n.Activities[i]
		if a.Kind != pipeline.KindForEach {
			continue
		}
		bound := root.bound
		if a.HasFailedDependency() {
			bound = bound.With(map[string]string{pipeline.VarErrorMessage: "", pipeline.VarFailedActivity: ""})
		}
		items, err := pipeline.EvaluateItems(a.Items, bound)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("pipeline %q: activity %s: %v", n.Name, a.Name, err))
		}
		if !a.HasFailedDependency() {
			root.items[a.Name] = items
		}
	}

	err = e.history.RecordRunStart(ctx, history.RunStart{
		ID:          id,
		Pipeline:    n.Name,
		Trigger:     req.Trigger,
		ScheduledAt: req.ScheduledAt,
		Attempt:     req.Attempt,
		Parameters:  bound.Vars,
		StartedAt:   started,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		exec:    e,
		id:      id,
		p:       n,
		req:     req,
		root:    root,
		started: started,
		ctx:     runCtx,
		cancel:  cancel,
		handle:  &Handle{ID: id, done: make(chan struct{})},
		log: e.log.WithFields(logger.Fields(
			logger.FieldRunID, id, logger.FieldPipeline, n.Name, logger.FieldTrigger, req.Trigger)),
	}

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		cancel()
		r.record(e.history.RecordRunEnd(ctx, id, history.RunFailed, "executor shutting down", e.now()))
		return nil, apperrors.ServiceUnavailable("executor")
	}
	e.runs[id] = r
	e.wg.Add(1)
	e.mu.Unlock()

	e.metrics.RunStarted(ctx, n.Name)
	r.log.Info("run started", logger.Fields(logger.FieldAttempt, req.Attempt))
	go r.execute()
	return r.handle, nil
}

func systemVars(id, name string, req Request, started time.Time) map[string]string {
	scheduled := started
	if req.ScheduledAt != nil {
		scheduled = *req.ScheduledAt
	}
	vars := map[string]string{
		pipeline.VarRunID:         id,
		pipeline.VarPipelineName:  name,
		pipeline.VarTriggerName:   req.Trigger,
		pipeline.VarScheduledTime: scheduled.UTC().Format(time.RFC3339),
		pipeline.VarWindowStart:   "",
		pipeline.VarWindowEnd:     "",
	}
	if req.Window != nil {
		vars[pipeline.VarWindowStart] = req.Window.Start.UTC().Format(time.RFC3339)
		vars[pipeline.VarWindowEnd] = req.Window.End.UTC().Format(time.RFC3339)
	}
	return vars
}

// Cancel stops a running run: pending activities are skipped and no new
// attempts or batches start.
func (e *Executor) Cancel(ctx context.Context, runID string) error {
	e.mu.Lock()
	r, ok := e.runs[runID]
	e.mu.Unlock()
	if ok {
		r.log.Info("run cancel requested")
		r.cancel()
		return nil
	}
	if _, err := e.history.GetRun(ctx, runID); err != nil {
		return err
	}
	return apperrors.Conflict(fmt.Sprintf("run %s is not running", runID))
}

// Active returns the ids of runs still executing.
func (e *Executor) Active() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown refuses new runs, cancels the running ones and waits for them.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	for _, r := range e.runs {
		r.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor: shutdown: %w", ctx.Err())
	}
}

func (e *Executor) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

func (e *Executor) finish(r *run) {
	e.mu.Lock()
	delete(e.runs, r.id)
	e.mu.Unlock()
	e.wg.Done()
}

func runAttrs(r *run) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(observability.AttrRunID, r.id),
		attribute.String(observability.AttrPipeline, r.p.Name),
		attribute.String(observability.AttrTrigger, r.req.Trigger),
		attribute.Int(observability.AttrAttempt, r.req.Attempt),
	}
}
