package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/trigger"
)

func at(h, m, s, ms int) time.Time {
	return time.Date(2024, 3, 1, h, m, s, ms*int(time.Millisecond), time.UTC)
}

// clock is a settable time source shared by the executor and scheduler.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	sched    *Scheduler
	history  *history.History
	exec     *executor.Executor
	triggers *trigger.Registry
	clock    *clock
	queries  chan string
	delay    atomic.Int64
}

func newFixture(t *testing.T, status int, specs ...trigger.Spec) *fixture {
	t.Helper()
	f := &fixture{clock: &clock{now: at(9, 0, 0, 0)}, queries: make(chan string, 64)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case f.queries <- r.URL.RawQuery:
		default:
		}
		time.Sleep(time.Duration(f.delay.Load()))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	catalog := pipeline.NewCatalog()
	err := catalog.Add(&pipeline.Pipeline{
		Name:       "collect",
		Parameters: map[string]any{"base_url": srv.URL, "from": "", "to": ""},
		Activities: []pipeline.Activity{{Name: "collect", URL: "{base_url}/collect?from={from}&to={to}"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	f.triggers = trigger.NewRegistry(nil, logger.NewNop())
	for _, spec := range specs {
		tr, err := trigger.New(spec)
		if err != nil {
			t.Fatalf("trigger %s: %v", spec.Name, err)
		}
		if err := f.triggers.Add(context.Background(), tr); err != nil {
			t.Fatalf("add trigger: %v", err)
		}
	}

	client, err := httpclient.New(httpclient.Config{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	f.history = history.New(history.NewMemoryBackend(), logger.NewNop())
	f.exec = executor.New(executor.Config{}, client, f.history, logger.NewNop(), executor.WithClock(f.clock.Now))
	t.Cleanup(func() { _ = f.exec.Shutdown(context.Background()) })
	f.sched = New(Config{}, f.triggers, catalog, f.exec, f.history, logger.NewNop(), WithClock(f.clock.Now))
	return f
}

func (f *fixture) tick(t *testing.T, now time.Time) []Fired {
	t.Helper()
	f.clock.Set(now)
	return f.sched.Tick(context.Background(), now)
}

func (f *fixture) waitRun(t *testing.T, id string) *history.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := f.history.GetRun(context.Background(), id)
		if err == nil && run.Status.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return nil
}

func every5(name string) trigger.Spec {
	return trigger.Spec{
		Name:      name,
		Pipeline:  "collect",
		Schedule:  trigger.Interval{Unit: trigger.Minute, Every: 5},
		Activated: true,
	}
}

func TestTickFiresLatestBoundaryOnly(t *testing.T) {
	f := newFixture(t, http.StatusOK, every5("every-5m"))

	fired := f.tick(t, at(10, 0, 0, 500))
	if len(fired) != 1 || !fired[0].ScheduledAt.Equal(at(10, 0, 0, 0)) {
		t.Fatalf("expected 10:00 to fire on first tick, got %+v", fired)
	}
	f.waitRun(t, fired[0].RunID)

	if fired := f.tick(t, at(10, 0, 1, 500)); len(fired) != 0 {
		t.Fatalf("expected no fire within the same boundary, got %+v", fired)
	}

	fired = f.tick(t, at(10, 17, 0, 0))
	if len(fired) != 1 || !fired[0].ScheduledAt.Equal(at(10, 15, 0, 0)) {
		t.Fatalf("expected only 10:15 after a gap, got %+v", fired)
	}
	f.waitRun(t, fired[0].RunID)

	runs, _ := f.history.Query(context.Background(), history.Filter{Trigger: "every-5m"})
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs without backfill, got %d", len(runs))
	}
}

func TestFirstTickIsNotRetroactive(t *testing.T) {
	f := newFixture(t, http.StatusOK, every5("every-5m"))

	if fired := f.tick(t, at(10, 2, 0, 0)); len(fired) != 0 {
		t.Fatalf("expected no retroactive fire, got %+v", fired)
	}
	fired := f.tick(t, at(10, 5, 0, 200))
	if len(fired) != 1 || !fired[0].ScheduledAt.Equal(at(10, 5, 0, 0)) {
		t.Fatalf("expected 10:05, got %+v", fired)
	}
	f.waitRun(t, fired[0].RunID)
}

func TestActivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, http.StatusOK, every5("every-5m"))

	fired := f.tick(t, at(10, 0, 0, 100))
	f.waitRun(t, fired[0].RunID)

	if err := f.sched.Deactivate(ctx, "every-5m"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if fired := f.tick(t, at(10, 5, 0, 100)); len(fired) != 0 {
		t.Fatalf("expected deactivated trigger not to fire, got %+v", fired)
	}

	if err := f.sched.Activate(ctx, "every-5m"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if fired := f.tick(t, at(10, 7, 0, 0)); len(fired) != 0 {
		t.Fatalf("expected reactivation not to fire missed boundaries, got %+v", fired)
	}
	fired = f.tick(t, at(10, 10, 0, 300))
	if len(fired) != 1 {
		t.Fatalf("expected 10:10 after reactivation, got %+v", fired)
	}
	f.waitRun(t, fired[0].RunID)

	if err := f.sched.Activate(ctx, "missing"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDuplicateBoundaryIsSuppressed(t *testing.T) {
	f := newFixture(t, http.StatusOK, every5("every-5m"))

	fired := f.tick(t, at(10, 0, 0, 100))
	f.waitRun(t, fired[0].RunID)

	// A fresh scheduler over the same history, as after a restart.
	restarted := New(Config{}, f.triggers, pipeline.NewCatalog(), f.exec, f.history, logger.NewNop())
	if fired := restarted.Tick(context.Background(), at(10, 0, 0, 600)); len(fired) != 0 {
		t.Fatalf("expected suppression, got %+v", fired)
	}
	runs, _ := f.history.Query(context.Background(), history.Filter{Trigger: "every-5m"})
	if len(runs) != 1 {
		t.Fatalf("expected a single run for the boundary, got %d", len(runs))
	}
}

func TestTumblingWindowRetries(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, trigger.Spec{
		Name:     "window",
		Pipeline: "collect",
		Schedule: trigger.TumblingWindow{
			Interval: 15 * time.Minute,
			Retry:    trigger.WindowRetry{Count: 2, Interval: time.Minute},
		},
		Activated:  true,
		Parameters: map[string]string{"from": "{window_start}", "to": "{window_end}"},
	})

	waitPending := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for f.sched.pendingRetries() != n {
			if time.Now().After(deadline) {
				t.Fatalf("expected %d pending retries", n)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	fired := f.tick(t, at(10, 15, 0, 100))
	if len(fired) != 1 || fired[0].Attempt != 0 {
		t.Fatalf("expected first attempt, got %+v", fired)
	}
	if q := <-f.queries; q != "from=2024-03-01T10%3A00%3A00Z&to=2024-03-01T10%3A15%3A00Z" {
		t.Fatalf("expected window bounds in query, got %q", q)
	}
	f.waitRun(t, fired[0].RunID)
	waitPending(1)

	if fired := f.tick(t, at(10, 15, 30, 0)); len(fired) != 0 {
		t.Fatalf("expected retry to wait its interval, got %+v", fired)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		now := f.clock.Now().Add(time.Minute)
		fired = f.tick(t, now)
		if len(fired) != 1 || fired[0].Attempt != attempt || !fired[0].ScheduledAt.Equal(at(10, 15, 0, 0)) {
			t.Fatalf("expected retry %d of 10:15, got %+v", attempt, fired)
		}
		f.waitRun(t, fired[0].RunID)
		if attempt < 2 {
			waitPending(1)
		}
	}

	// The last failure is final.
	f.sched.watchers.Wait()
	if n := f.sched.pendingRetries(); n != 0 {
		t.Fatalf("expected no retries after the last attempt, got %d", n)
	}
	scheduled := at(10, 15, 0, 0)
	runs, _ := f.history.Query(context.Background(), history.Filter{Trigger: "window", ScheduledAt: &scheduled})
	if len(runs) != 3 || runs[2].Attempt != 2 {
		t.Fatalf("expected 3 attempts for the window, got %+v", runs)
	}
}

func TestStopLeavesTimeToDrainWindowRuns(t *testing.T) {
	f := newFixture(t, http.StatusOK, trigger.Spec{
		Name:     "window",
		Pipeline: "collect",
		Schedule: trigger.TumblingWindow{
			Interval: 15 * time.Minute,
			Retry:    trigger.WindowRetry{Count: 2, Interval: time.Minute},
		},
		Activated:  true,
		Parameters: map[string]string{"from": "{window_start}", "to": "{window_end}"},
	})
	f.delay.Store(int64(400 * time.Millisecond))
	f.clock.Set(at(10, 15, 0, 0))
	f.sched.cfg.TickInterval = 10 * time.Millisecond

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-f.queries

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("expected scheduler to stop without waiting on runs, got %v", err)
	}
	if err := f.exec.Shutdown(ctx); err != nil {
		t.Fatalf("expected executor to drain within the same deadline, got %v", err)
	}

	runs, err := f.history.Query(context.Background(), history.Filter{Trigger: "window"})
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one window run, got %d (%v)", len(runs), err)
	}
	if !runs[0].Status.Terminal() {
		t.Fatalf("expected a terminal run after shutdown, got %s", runs[0].Status)
	}
}

func TestTriggersListing(t *testing.T) {
	idle := every5("idle")
	idle.Activated = false
	f := newFixture(t, http.StatusOK, every5("every-5m"), idle, trigger.Spec{
		Name:      "daily",
		Pipeline:  "collect",
		Schedule:  trigger.DailyAt{Hour: 6},
		TimeZone:  "Europe/Brussels",
		Activated: true,
	})
	f.clock.Set(at(10, 3, 0, 0))

	list := f.sched.Triggers()
	if len(list) != 3 || list[0].Name != "daily" || list[2].Name != "idle" {
		t.Fatalf("expected sorted listing, got %+v", list)
	}
	if list[2].Active || list[2].Next != nil {
		t.Fatalf("expected idle trigger without next boundary, got %+v", list[2])
	}
	if !list[1].Next.Equal(at(10, 5, 0, 0)) {
		t.Fatalf("expected next 10:05, got %v", list[1].Next)
	}
	// 06:00 in Brussels on 2 March 2024 is 05:00 UTC.
	if want := time.Date(2024, 3, 2, 5, 0, 0, 0, time.UTC); !list[0].Next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, list[0].Next)
	}
	if list[0].Kind != trigger.KindDailyAt || list[0].TimeZone != "Europe/Brussels" {
		t.Fatalf("unexpected daily entry %+v", list[0])
	}
}

func TestComponentLifecycle(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	ctx := context.Background()

	if h := f.sched.Health(ctx); h.Message != "tick loop not running" {
		t.Fatalf("expected unhealthy before start, got %+v", h)
	}
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.sched.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}
	h := f.sched.Health(ctx)
	if h.Message != "0 active triggers, 0 window retries pending" {
		t.Fatalf("unexpected health %+v", h)
	}
	if h.Details["active_triggers"] != 0 || h.Details["tick_interval"] != f.sched.cfg.TickInterval.String() {
		t.Fatalf("unexpected health details %+v", h.Details)
	}
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRunLoopTicks(t *testing.T) {
	var ticks atomic.Int32
	f := newFixture(t, http.StatusOK)
	f.sched.cfg.TickInterval = 10 * time.Millisecond
	f.sched.now = func() time.Time {
		ticks.Add(1)
		return time.Now()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()
	for ticks.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
