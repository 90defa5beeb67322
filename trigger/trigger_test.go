package trigger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/redis"
)

func every5() Spec {
	return Spec{
		Name:       "collect-every-5m",
		Pipeline:   "collect",
		Schedule:   Interval{Unit: Minute, Every: 5},
		Activated:  true,
		Parameters: map[string]string{"since": "{scheduled_time}"},
	}
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *Spec)
		contains string
	}{
		{"missing pipeline", func(s *Spec) { s.Pipeline = "" }, "pipeline: is required"},
		{"missing schedule", func(s *Spec) { s.Schedule = nil }, "schedule: is required"},
		{"bad unit", func(s *Spec) { s.Schedule = Interval{Unit: "year", Every: 1} }, "schedule.unit"},
		{"zero every", func(s *Spec) { s.Schedule = Interval{Unit: Minute} }, "schedule.every"},
		{"bad hour", func(s *Spec) { s.Schedule = DailyAt{Hour: 24} }, "schedule.hour"},
		{"short window", func(s *Spec) { s.Schedule = TumblingWindow{Interval: time.Second} }, "schedule.interval"},
		{"bad zone", func(s *Spec) { s.TimeZone = "Mars/Olympus" }, "unknown time zone"},
		{"window var outside tumbling", func(s *Spec) { s.Parameters["from"] = "{window_start}" }, "unknown parameter {window_start}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := every5()
			tt.mutate(&s)
			_, err := New(s)
			if !apperrors.HasCode(err, apperrors.ErrCodeDefinition) {
				t.Fatalf("expected definition error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected %q in %q", tt.contains, err.Error())
			}
		})
	}
}

func TestTriggerDefaultAnchorAlignsToMidnight(t *testing.T) {
	tr, err := New(every5())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := tr.Latest(utc(2025, 6, 1, 10, 7))
	if !ok || !got.Equal(utc(2025, 6, 1, 10, 5)) {
		t.Fatalf("expected 10:05, got %v/%v", got, ok)
	}
}

func TestTriggerBindTumbling(t *testing.T) {
	s := every5()
	s.Schedule = TumblingWindow{Interval: 15 * time.Minute}
	s.StartTime = utc(2025, 1, 1, 0, 0)
	s.Parameters = map[string]string{"from": "{window_start}", "to": "{window_end}", "by": "{trigger_name}"}
	tr, err := New(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := tr.Bind(utc(2025, 1, 1, 1, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["from"] != "2025-01-01T00:45:00Z" || got["to"] != "2025-01-01T01:00:00Z" || got["by"] != "collect-every-5m" {
		t.Fatalf("unexpected bindings %v", got)
	}
	if w := tr.Window(utc(2025, 1, 1, 1, 0)); w == nil || !w.Start.Equal(utc(2025, 1, 1, 0, 45)) {
		t.Fatalf("unexpected window %+v", w)
	}
	if r, ok := tr.Retry(); !ok || r.Count != 0 {
		t.Fatalf("expected tumbling retry policy, got %+v/%v", r, ok)
	}
}

func TestRegistryActivation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryActivationStore()
	reg := NewRegistry(store, logger.NewNop())

	tr, _ := New(every5())
	if err := reg.Add(ctx, tr); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Add(ctx, tr); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if !tr.Active() {
		t.Fatal("expected initial state from definition")
	}

	if err := reg.Deactivate(ctx, tr.Name()); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if tr.Active() {
		t.Fatal("expected trigger to be inactive")
	}
	if a, _ := store.Load(ctx, tr.Name()); a == nil || a.Active {
		t.Fatalf("expected persisted inactive state, got %+v", a)
	}

	if err := reg.Activate(ctx, "missing"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryRestoresPersistedStateFromRedis(t *testing.T) {
	ctx := context.Background()
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, logger.NewNop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	first := NewRegistry(NewRedisActivationStore(client, "orchestrator:trigger"), logger.NewNop())
	tr, _ := New(every5())
	first.Add(ctx, tr)
	if err := first.Deactivate(ctx, tr.Name()); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	// A restart loads the definition as activated; the stored state wins.
	second := NewRegistry(NewRedisActivationStore(client, "orchestrator:trigger"), logger.NewNop())
	reloaded, _ := New(every5())
	if err := second.Add(ctx, reloaded); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if reloaded.Active() {
		t.Fatal("expected persisted deactivation to survive restart")
	}
	if len(second.List()) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(second.List()))
	}
}
