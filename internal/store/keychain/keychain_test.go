package keychain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/store/storetest"
)

// mapStore is an in-memory secretStore
type mapStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{items: make(map[string][]byte)}
}

func (m *mapStore) Get(service, account string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[service+"/"+account]
	if !ok {
		return nil, errNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *mapStore) Set(service, account string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[service+"/"+account] = append([]byte(nil), data...)
	return nil
}

func (m *mapStore) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := service + "/" + account
	if _, ok := m.items[key]; !ok {
		return errNotFound
	}
	delete(m.items, key)
	return nil
}

func (m *mapStore) IsSupported() bool { return true }

func TestKeychainStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) client.Storage {
		return &Storage{store: newMapStore(), service: ServiceName, account: "default"}
	})
}

func TestNoopStore(t *testing.T) {
	s := &Storage{store: &noopStore{}, service: ServiceName, account: "default"}
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Load() error = %v, want ErrNotSupported", err)
	}
	session := storetest.Alice
	if err := s.Save(ctx, &session); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Save() error = %v, want ErrNotSupported", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Clear() error = %v, want ErrNotSupported", err)
	}
}

func TestNew_UsesPlatformStore(t *testing.T) {
	s := New("")
	if s.store == nil {
		t.Fatal("platform store not initialized")
	}
	if s.account != "default" || s.service != ServiceName {
		t.Errorf("New(\"\") = service %q account %q", s.service, s.account)
	}
	if s.store.IsSupported() != IsSupported() {
		t.Error("IsSupported() disagrees with the platform store")
	}
}
