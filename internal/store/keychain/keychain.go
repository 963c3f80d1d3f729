// Package keychain stores the session in the operating system's secret store.
// On macOS this is the login Keychain; elsewhere every operation fails with
// ErrNotSupported.
package keychain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/metrics"
)

const backendName = "keychain"

// ServiceName is the keychain service all sessions are filed under
const ServiceName = "atrecord"

// ErrNotSupported is returned when no secret store exists on this platform
var ErrNotSupported = errors.New("secret store not supported on this platform")

// errNotFound is returned by the platform store when no item exists
var errNotFound = errors.New("credential not found")

// secretStore is the platform-specific item store
type secretStore interface {
	Get(service, account string) ([]byte, error)
	Set(service, account string, data []byte) error
	Delete(service, account string) error
	IsSupported() bool
}

// platform is set by the build-specific init()
var platform secretStore

// Storage keeps one session as a keychain item
type Storage struct {
	store   secretStore
	service string
	account string
}

// New returns a storage for the named session
func New(name string) *Storage {
	if name == "" {
		name = "default"
	}
	return &Storage{store: platform, service: ServiceName, account: name}
}

// IsSupported reports whether the platform has a usable secret store
func IsSupported() bool {
	return platform.IsSupported()
}

// Load reads the session item
func (s *Storage) Load(ctx context.Context) (session *client.Session, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "load", time.Since(start), err)
	}()

	data, err := s.store.Get(s.service, s.account)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, client.ErrNoSession
		}
		return nil, fmt.Errorf("failed to read keychain item %s: %w", s.account, err)
	}

	session = &client.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to parse keychain item %s: %w", s.account, err)
	}
	return session, nil
}

// Save writes the session item, replacing any previous one
func (s *Storage) Save(ctx context.Context, session *client.Session) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "save", time.Since(start), err)
	}()

	if session == nil {
		return client.ErrNilSession
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.store.Set(s.service, s.account, data); err != nil {
		return fmt.Errorf("failed to write keychain item %s: %w", s.account, err)
	}
	return nil
}

// Clear deletes the session item
func (s *Storage) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(backendName, "clear", time.Since(start), err)
	}()

	if err := s.store.Delete(s.service, s.account); err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("failed to delete keychain item %s: %w", s.account, err)
	}
	return nil
}
