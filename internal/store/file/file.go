// Package file stores the session as a JSON document on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const backendName = "file"

// Storage persists one session per file
type Storage struct {
	path string
}

// New returns a storage for the named session under dir. The name is
// slugified, so "My PDS (prod)" is stored as dir/my-pds-prod.json.
func New(dir, name string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	base := slug.Make(name)
	if base == "" {
		base = "default"
	}
	return &Storage{path: filepath.Join(dir, base+".json")}, nil
}

// NewAtPath returns a storage backed by exactly path
func NewAtPath(path string) *Storage {
	return &Storage{path: path}
}

// Path returns the file the session is stored in
func (s *Storage) Path() string {
	return s.path
}

// Load reads the session from disk
func (s *Storage) Load(ctx context.Context) (session *client.Session, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), err)
	}()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, client.ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	session = &client.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	return session, nil
}

// Save writes the session atomically with owner-only permissions
func (s *Storage) Save(ctx context.Context, session *client.Session) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "save", time.Since(start), err)
	}()

	if session == nil {
		return client.ErrNilSession
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return writeJSONAtomic(s.path, session, 0o600)
}

// Clear removes the session file
func (s *Storage) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "clear", time.Since(start), err)
	}()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// writeJSONAtomic writes to a temporary file in the same directory, syncs it,
// then renames it over path. Readers see the old or the new file, never a mix.
func writeJSONAtomic(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
