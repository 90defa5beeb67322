package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Bytes wraps a Storage with []byte helpers for small in-memory objects.
type Bytes struct {
	Storage
}

// NewBytes wraps s.
func NewBytes(s Storage) Bytes { return Bytes{Storage: s} }

// Put stores data at path.
func (b Bytes) Put(ctx context.Context, path string, data []byte) error {
	return b.Upload(ctx, path, bytes.NewReader(data))
}

// Get reads the whole object at path.
func (b Bytes) Get(ctx context.Context, path string) ([]byte, error) {
	rc, err := b.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}
