package local

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/storage"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := storage.NewBytes(s)

	if err := b.Put(ctx, "runs/2024/01/02/a.jsonl", []byte("line\n")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put(ctx, "runs/2024/01/03/b.jsonl", []byte("other\n")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := b.Get(ctx, "runs/2024/01/02/a.jsonl")
	if err != nil || string(got) != "line\n" {
		t.Fatalf("expected stored content, got %q (%v)", got, err)
	}

	files, err := s.List(ctx, "runs/2024/01/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].Path != "runs/2024/01/02/a.jsonl" {
		t.Fatalf("unexpected listing: %+v", files)
	}

	if ok, _ := s.Exists(ctx, "runs/2024/01/02/a.jsonl"); !ok {
		t.Fatalf("expected object to exist")
	}
	if err := s.Delete(ctx, "runs/2024/01/02/a.jsonl"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "runs/2024/01/02/a.jsonl"); err != nil {
		t.Fatalf("expected deleting a missing object to succeed, got %v", err)
	}
	if _, err := s.Download(ctx, "runs/2024/01/02/a.jsonl"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsEscapingPaths(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Upload(context.Background(), "../outside", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for path outside base directory")
	}
}

func TestRegisteredFactory(t *testing.T) {
	s, err := storage.New(storage.Config{Provider: storage.ProviderLocal, BasePath: t.TempDir()}, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := s.URL(context.Background(), "x.jsonl")
	if err != nil || !strings.HasPrefix(u, "file://") {
		t.Fatalf("expected file URL, got %q (%v)", u, err)
	}
}
