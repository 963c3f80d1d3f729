// Package memory provides a process-local session storage.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const backendName = "memory"

// Storage keeps the session in memory. Nothing survives the process.
type Storage struct {
	mu      sync.RWMutex
	session *client.Session
}

// New creates an empty memory storage
func New() *Storage {
	return &Storage{}
}

// Load returns a copy of the stored session
func (s *Storage) Load(ctx context.Context) (*client.Session, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), client.ErrNoSession)
		return nil, client.ErrNoSession
	}
	cp := *s.session
	metrics.RecordStorageOperation(backendName, "load", time.Since(start), nil)
	return &cp, nil
}

// Save replaces the stored session with a copy of session
func (s *Storage) Save(ctx context.Context, session *client.Session) error {
	start := time.Now()
	if session == nil {
		metrics.RecordStorageOperation(backendName, "save", time.Since(start), client.ErrNilSession)
		return client.ErrNilSession
	}
	cp := *session

	s.mu.Lock()
	s.session = &cp
	s.mu.Unlock()

	metrics.RecordStorageOperation(backendName, "save", time.Since(start), nil)
	return nil
}

// Clear forgets the stored session
func (s *Storage) Clear(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	metrics.RecordStorageOperation(backendName, "clear", time.Since(start), nil)
	return nil
}
