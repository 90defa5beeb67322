package version

import (
	"strings"
	"testing"
	"time"
)

func saveAndRestore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() {
		Version, GitCommit, BuildTime = v, c, b
	}
}

func TestGetUsesLinkTimeValues(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.4.0"
	GitCommit = "abc1234"
	BuildTime = "2025-03-01T06:00:00Z"

	info := Get()
	if info.Version != "1.4.0" {
		t.Errorf("expected version 1.4.0, got %q", info.Version)
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("expected commit abc1234, got %q", info.GitCommit)
	}
	if info.BuildDate.Year() != 2025 {
		t.Errorf("expected build year 2025, got %d", info.BuildDate.Year())
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"dev", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "1.0.0", GitCommit: "abc1234"}, "1.0.0-abc1234"},
		{"dirty", Info{Version: "1.0.0", GitCommit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsRelease(t *testing.T) {
	if (Info{Version: "dev"}).IsRelease() {
		t.Error("dev should not be a release")
	}
	if (Info{Version: "1.0.0", Dirty: true}).IsRelease() {
		t.Error("dirty build should not be a release")
	}
	if !(Info{Version: "1.0.0"}).IsRelease() {
		t.Error("1.0.0 should be a release")
	}
}

func TestString(t *testing.T) {
	info := Info{
		Version:   "1.0.0",
		GitCommit: "abc1234",
		GoVersion: "go1.26.0",
		BuildDate: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	s := info.String()
	if !strings.HasPrefix(s, "1.0.0-abc1234") {
		t.Errorf("expected short version prefix, got %q", s)
	}
	if !strings.Contains(s, "built 2025-01-15T10:30:00Z") {
		t.Errorf("expected build date, got %q", s)
	}
	if !strings.Contains(s, "go1.26.0") {
		t.Errorf("expected go version, got %q", s)
	}
}
