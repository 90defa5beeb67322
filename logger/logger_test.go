package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: FormatJSON}, "orchestrator", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected json log line, got %q: %v", line, err)
	}
	return m
}

func TestNewWithWriterWritesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")

	l.Info("run started", RunFields("r-1", "collect"))

	m := decodeLine(t, &buf)
	if m["message"] != "run started" {
		t.Errorf("expected message 'run started', got %v", m["message"])
	}
	if m[FieldService] != "orchestrator" {
		t.Errorf("expected service field, got %v", m[FieldService])
	}
	if m[FieldRunID] != "r-1" || m[FieldPipeline] != "collect" {
		t.Errorf("expected run fields, got %v", m)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "warn")

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "loud")
	l.Debug("debug")
	l.Info("info")
	if strings.Contains(buf.String(), `"message":"debug"`) {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Fatalf("expected info line, got %q", buf.String())
	}
}

func TestWithComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info").WithComponent("scheduler").WithError(errors.New("boom"))

	l.Error("tick failed")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != "scheduler" {
		t.Errorf("expected component scheduler, got %v", m[FieldComponent])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error boom, got %v", m["error"])
	}
}

func TestWithContextPicksUpRunID(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "info")
	ctx := ContextWithRunID(context.Background(), "run-42")
	ctx = ContextWithRequestID(ctx, "req-7")

	l.WithContext(ctx).Info("attempt")

	m := decodeLine(t, &buf)
	if m[FieldRunID] != "run-42" {
		t.Errorf("expected run_id run-42, got %v", m[FieldRunID])
	}
	if m[FieldRequestID] != "req-7" {
		t.Errorf("expected request_id req-7, got %v", m[FieldRequestID])
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNop()
	l.Info("nothing", Fields("k", "v"))
	l.WithComponent("x").Warn("still nothing")
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		kvs  []interface{}
		want int
	}{
		{"pairs", []interface{}{"a", 1, "b", 2}, 2},
		{"odd count drops tail", []interface{}{"a", 1, "b"}, 1},
		{"non-string key skipped", []interface{}{3, 1, "b", 2}, 1},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fields(tt.kvs...); len(got) != tt.want {
				t.Fatalf("expected %d fields, got %d (%v)", tt.want, len(got), got)
			}
		})
	}
}

func TestMergeHelpers(t *testing.T) {
	f := MergeWithError(nil, errors.New("x"))
	if f[FieldError] != "x" {
		t.Fatalf("expected error field, got %v", f)
	}
	f = MergeWithDuration(f, 1500*time.Millisecond)
	if f[FieldDuration] != int64(1500) {
		t.Fatalf("expected 1500ms, got %v", f[FieldDuration])
	}
	ef := ErrorFields("load", errors.New("bad"))
	if ef[FieldOperation] != "load" || ef[FieldError] != "bad" {
		t.Fatalf("unexpected error fields %v", ef)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Level != "info" || c.Format != FormatConsole || c.Output != "stderr" || !c.Timestamp {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	bad := Config{Level: "verbose", Format: FormatJSON}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid level to fail validation")
	}
	bad = Config{Level: "info", Format: "xml"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid format to fail validation")
	}
}
