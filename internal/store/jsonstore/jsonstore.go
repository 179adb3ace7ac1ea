// Package jsonstore keeps every message in a single JSON array file, the layout
// used by emails.json. Each append rewrites the whole file atomically.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/fileutil"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
)

// Store is a whole-file JSON array message store.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New returns a store writing to path. The parent directory is created if needed;
// the file itself appears on the first append.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Append reads the current array, appends msg and replaces the file. A file
// that cannot be parsed is left untouched and the error is returned.
func (s *Store) Append(ctx context.Context, msg *store.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.read()
	if err != nil {
		return fmt.Errorf("load %s: %w", s.path, err)
	}
	msgs = append(msgs, *msg)

	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// List returns all stored messages, or an empty slice if the file is missing
// or unreadable.
func (s *Store) List(ctx context.Context) []store.Message {
	msgs, err := s.read()
	if err != nil {
		slog.Error("failed to read message store",
			"path", s.path,
			"error", err,
		)
		return []store.Message{}
	}
	if msgs == nil {
		return []store.Message{}
	}
	return msgs
}

// Close is a no-op; every append is already on disk.
func (s *Store) Close() error { return nil }

func (s *Store) read() ([]store.Message, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var msgs []store.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return msgs, nil
}
