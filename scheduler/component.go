package scheduler

import (
	"context"
	"fmt"

	"github.com/kbukum/orchestrator/component"
)

var (
	_ component.Component   = (*Scheduler)(nil)
	_ component.Describable = (*Scheduler)(nil)
)

func (s *Scheduler) Name() string { return "scheduler" }

// Start launches the tick loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.stop != nil {
		return fmt.Errorf("scheduler: already started")
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(loopCtx)
	}()
	return nil
}

// Stop ends the tick loop and its window watchers. Runs already started keep
// going; the executor drains them.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.loopMu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.loopMu.Unlock()
	if stop == nil {
		return nil
	}
	stop()

	watched := make(chan struct{})
	go func() {
		<-done
		s.watchers.Wait()
		close(watched)
	}()
	select {
	case <-watched:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

func (s *Scheduler) Health(_ context.Context) component.Health {
	s.loopMu.Lock()
	running := s.stop != nil
	s.loopMu.Unlock()

	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	if !running {
		h.Status = component.StatusUnhealthy
		h.Message = "tick loop not running"
		return h
	}
	active := 0
	for _, t := range s.triggers.List() {
		if t.Active() {
			active++
		}
	}
	pending := s.pendingRetries()
	h.Message = fmt.Sprintf("%d active triggers, %d window retries pending", active, pending)
	h.Details = map[string]any{
		"triggers":        len(s.triggers.List()),
		"active_triggers": active,
		"window_retries":  pending,
		"tick_interval":   s.cfg.TickInterval.String(),
	}
	return h
}

func (s *Scheduler) Describe() component.Description {
	return component.Description{
		Name:    "Scheduler",
		Type:    "ticker",
		Details: fmt.Sprintf("tick=%s triggers=%d", s.cfg.TickInterval, len(s.triggers.List())),
	}
}
