package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/storage"
)

// archiveStamp is used in archive object names.
const archiveStamp = "20060102T150405Z"

// ArchiveResult describes one export.
type ArchiveResult struct {
	Path string `json:"path"`
	Runs int    `json:"runs"`
}

// Archiver exports terminal runs as JSON Lines to object storage.
type Archiver struct {
	history *History
	store   storage.Bytes
	log     *logger.Logger
}

// NewArchiver creates an Archiver writing to store.
func NewArchiver(h *History, store storage.Storage, log *logger.Logger) *Archiver {
	return &Archiver{history: h, store: storage.NewBytes(store), log: log.WithComponent("archiver")}
}

// ArchivePath is the object key for the window [from, to).
func ArchivePath(from, to time.Time) string {
	from, to = from.UTC(), to.UTC()
	return fmt.Sprintf("runs/%s/%s_%s.jsonl", from.Format("2006/01/02"), from.Format(archiveStamp), to.Format(archiveStamp))
}

// Archive writes every terminal run started in [from, to). Running runs are
// left out. An empty window still produces an empty object.
func (a *Archiver) Archive(ctx context.Context, from, to time.Time) (*ArchiveResult, error) {
	if !from.Before(to) {
		return nil, apperrors.InvalidInput("to", "must be after from")
	}
	runs, err := a.history.load(ctx, StartFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	n := 0
	for _, r := range runs {
		if !r.Status.Terminal() {
			continue
		}
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("history: encode run %s: %w", r.ID, err)
		}
		n++
	}

	path := ArchivePath(from, to)
	if err := a.store.Put(ctx, path, buf.Bytes()); err != nil {
		return nil, apperrors.ExternalServiceError("storage", err)
	}
	a.log.Info("runs archived", logger.Fields("path", path, "runs", n))
	return &ArchiveResult{Path: path, Runs: n}, nil
}
