package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/orchestrator/api"
	"github.com/kbukum/orchestrator/bootstrap"
	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/storage"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Definitions.Paths = []string{"../definitions"}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"database history without database", func(c *Config) { c.History.Backend = HistoryDatabase }, "requires database.enabled"},
		{"database history with database", func(c *Config) {
			c.History.Backend = HistoryDatabase
			c.Database.Enabled = true
		}, ""},
		{"publish without kafka", func(c *Config) { c.History.Publish = true }, "requires kafka.enabled"},
		{"unknown history backend", func(c *Config) { c.History.Backend = "mongo" }, "backend"},
		{"empty definition path", func(c *Config) { c.Definitions.Paths = []string{""} }, "paths"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "environment"},
		{"bad executor", func(c *Config) { c.Executor.MaxConcurrency = -1 }, "max_concurrency"},
		{"enabled s3 storage without bucket", func(c *Config) {
			c.Storage.Enabled = true
			c.Storage.Provider = storage.ProviderS3
		}, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	if cfg.Name != "orchestrator" {
		t.Fatalf("expected default name, got %q", cfg.Name)
	}
	if len(cfg.Definitions.Paths) != 1 || cfg.Definitions.Paths[0] != DefaultDefinitionsPath {
		t.Fatalf("expected default definitions path, got %v", cfg.Definitions.Paths)
	}
	if cfg.History.Backend != HistoryMemory || cfg.History.QueueSize != history.DefaultPublishQueue {
		t.Fatalf("unexpected history defaults: %+v", cfg.History)
	}
	if cfg.Server.Port != 8080 || cfg.Collaborator.Timeout <= 0 {
		t.Fatalf("expected section defaults, got port %d timeout %v", cfg.Server.Port, cfg.Collaborator.Timeout)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"pairs", []string{"a=1", "b=x=y"}, map[string]string{"a": "1", "b": "x=y"}, false},
		{"empty value", []string{"a="}, map[string]string{"a": ""}, false},
		{"later wins", []string{"a=1", "a=2"}, map[string]string{"a": "2"}, false},
		{"missing separator", []string{"a"}, nil, true},
		{"empty key", []string{"=1"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("expected %s=%q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Fatalf("expected %q to parse, got %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Fatalf("expected xml to be rejected")
	}
}

func TestPrintOutput(t *testing.T) {
	data := api.RunCreated{RunID: "r1", Pipeline: "collect"}
	table := func(w io.Writer) { row(w, "RUN", data.RunID) }

	tests := []struct {
		format OutputFormat
		quiet  bool
		want   string
	}{
		{OutputJSON, false, `"run_id": "r1"`},
		{OutputYAML, false, "run_id: r1"},
		{OutputTable, false, "RUN  r1"},
		{OutputJSON, true, ""},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		opts := &OutputOptions{Format: tt.format, Quiet: tt.quiet, Writer: &buf}
		if err := PrintOutput(opts, data, table); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.format, err)
		}
		if tt.want == "" {
			if buf.Len() != 0 {
				t.Fatalf("expected no output when quiet, got %q", buf.String())
			}
			continue
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Fatalf("%s: expected output containing %q, got %q", tt.format, tt.want, buf.String())
		}
	}
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	want := map[string][]string{
		"serve":        nil,
		"validate":     nil,
		"version":      nil,
		"pipeline":     {"list", "show", "create-run"},
		"pipeline-run": {"query", "show", "cancel", "archive"},
		"trigger":      {"list", "start", "stop", "last-success"},
	}
	for name, subs := range want {
		cmd, _, err := root.Command().Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected command %q, got %v", name, err)
		}
		for _, sub := range subs {
			c, _, err := root.Command().Find([]string{name, sub})
			if err != nil || c.Name() != sub {
				t.Fatalf("expected command %q %q, got %v", name, sub, err)
			}
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOutput(&buf)
	root.Command().SetArgs(args)
	err := root.Execute(context.Background())
	return buf.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "../definitions")
	if err != nil {
		t.Fatalf("expected bundled definitions to be valid, got %v", err)
	}
	if !strings.Contains(out, "Definitions are valid: 3 pipelines, 4 triggers") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = execute(t, "validate", "../definitions/irail.hcl", "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report DefinitionReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v (%s)", err, out)
	}
	if len(report.Pipelines) != 1 || report.Pipelines[0].Name != "liveboards" || len(report.Triggers) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Triggers[1].Schedule != "daily at 06:00" || report.Triggers[1].TimeZone != "Europe/Brussels" {
		t.Fatalf("unexpected daily trigger: %+v", report.Triggers[1])
	}
}

func TestValidateCommandRejectsBrokenReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	doc := `
triggers:
  - name: orphan
    pipeline: missing
    schedule:
      interval: {unit: hour, every: 1}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "validate", path)
	if !apperrors.HasCode(err, apperrors.ErrCodeDefinition) {
		t.Fatalf("expected definition error, got %v", err)
	}
	if !strings.Contains(err.Error(), `unknown pipeline "missing"`) {
		t.Fatalf("expected unknown pipeline issue, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if info["version"] == "" || info["version"] == nil {
		t.Fatalf("expected version, got %v", info)
	}

	out, err = execute(t, "version")
	if err != nil || !strings.HasPrefix(out, "orchestrator version ") {
		t.Fatalf("unexpected table output %q (%v)", out, err)
	}
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	if _, err := execute(t, "version", "-o", "xml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestClientDecodesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(apperrors.Conflict("run r1 is not running").ToResponse())
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	_, err = client.CancelRun(context.Background(), "r1")
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T %v", err, err)
	}
	if appErr.Code != apperrors.ErrCodeConflict || appErr.HTTPStatus != http.StatusConflict || appErr.Message != "run r1 is not running" {
		t.Fatalf("unexpected error: %+v", appErr)
	}
}

func TestRunQueryParams(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := RunQuery{Pipeline: "collect", Status: "Failed", From: &from, Limit: 5}.params()
	if p["pipeline"] != "collect" || p["status"] != "Failed" || p["from"] != "2024-05-01T00:00:00Z" || p["limit"] != "5" {
		t.Fatalf("unexpected params: %v", p)
	}
	if _, ok := p["to"]; ok {
		t.Fatalf("expected unset to to be omitted, got %v", p)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServeAndRemoteCommands(t *testing.T) {
	collab := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collab.Close()

	defs := filepath.Join(t.TempDir(), "ping.yaml")
	doc := `
pipelines:
  - name: ping
    parameters:
      base_url: ` + collab.URL + `
    activities:
      - name: health
        url: "{base_url}/health"
triggers:
  - name: ping-hourly
    pipeline: ping
    activated: true
    start_time: 2100-01-01T00:00:00Z
    schedule:
      interval: {unit: hour, every: 1}
`
	if err := os.WriteFile(defs, []byte(doc), 0o600); err != nil {
		t.Fatalf("write definitions: %v", err)
	}

	cfg := &Config{}
	cfg.Environment = "staging"
	cfg.Definitions.Paths = []string{defs}
	cfg.Server.Enabled = true
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Storage.Enabled = true
	cfg.Storage.BasePath = t.TempDir()

	app, o, err := NewApp(cfg, bootstrap.WithLogger(logger.NewNop()), bootstrap.WithSummaryOutput(io.Discard))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err = app.RunTask(ctx, func(ctx context.Context) error {
		base := "http://" + o.Server.Addr()

		out, err := execute(t, "pipeline", "create-run", "ping", "--api", base, "-o", "json")
		if err != nil {
			t.Fatalf("create-run: %v", err)
		}
		var created api.RunCreated
		if err := json.Unmarshal([]byte(out), &created); err != nil || created.RunID == "" {
			t.Fatalf("unexpected create-run output %q (%v)", out, err)
		}

		client, err := NewClient(base, 5*time.Second)
		if err != nil {
			t.Fatalf("client: %v", err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for {
			run, err := client.GetRun(ctx, created.RunID)
			if err == nil && run.Status == history.RunSucceeded {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("run did not succeed: %+v (%v)", run, err)
			}
			time.Sleep(20 * time.Millisecond)
		}

		out, err = execute(t, "pipeline-run", "query", "--pipeline", "ping", "--api", base, "-o", "yaml")
		if err != nil || !strings.Contains(out, "pipeline: ping") || !strings.Contains(out, "status: Succeeded") {
			t.Fatalf("unexpected query output %q (%v)", out, err)
		}

		out, err = execute(t, "trigger", "stop", "ping-hourly", "--api", base)
		if err != nil || !strings.Contains(out, "Trigger ping-hourly is inactive") {
			t.Fatalf("unexpected stop output %q (%v)", out, err)
		}

		out, err = execute(t, "pipeline", "list", "--api", base)
		if err != nil || !strings.Contains(out, "ping") || !strings.Contains(out, "health") {
			t.Fatalf("unexpected list output %q (%v)", out, err)
		}

		from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		out, err = execute(t, "pipeline-run", "archive", "--from", from, "--to", to, "--api", base)
		if err != nil || !strings.Contains(out, "Archived 1 runs") {
			t.Fatalf("unexpected archive output %q (%v)", out, err)
		}

		_, err = execute(t, "pipeline-run", "show", "missing", "--api", base)
		if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run task: %v", err)
	}
	if o.Catalog == nil || len(o.Triggers.List()) != 1 {
		t.Fatalf("expected assembled orchestrator, got %+v", o)
	}
}
