package clienttest

import (
	"context"
	"sync"

	"github.com/devilmonastery/atrecord/internal/client"
)

// Storage is an in-memory client.Storage with failure injection and call counting
type Storage struct {
	mu      sync.Mutex
	session *client.Session
	saves   int
	loads   int

	// LoadErr, when set, is returned by Load
	LoadErr error
	// SaveErr, when set, is returned by Save and nothing is stored
	SaveErr error
}

// NewStorage returns a Storage holding session (which may be nil)
func NewStorage(session *client.Session) *Storage {
	return &Storage{session: session}
}

// Load implements client.Storage
func (s *Storage) Load(ctx context.Context) (*client.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if s.session == nil {
		return nil, client.ErrNoSession
	}
	cp := *s.session
	return &cp, nil
}

// Save implements client.Storage
func (s *Storage) Save(ctx context.Context, session *client.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *session
	s.session = &cp
	return nil
}

// SetSaveErr changes the Save failure under the lock
func (s *Storage) SetSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveErr = err
}

// Saved returns the stored session, or nil
func (s *Storage) Saved() *client.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Saves returns how many times Save was called
func (s *Storage) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Loads returns how many times Load was called
func (s *Storage) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
