// Package storetest is a conformance suite for client.Storage backends.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/devilmonastery/atrecord/internal/client"
)

// Factory returns an empty backend. It is called once per subtest.
type Factory func(t *testing.T) client.Storage

// Alice and Bob are distinct sessions used by the suite
var (
	Alice = client.Session{
		DID:    "did:plc:alice",
		Handle: "alice.test",
		JWT:    client.JWT{Access: "alice-access-1", Refresh: "alice-refresh-1"},
	}
	Bob = client.Session{
		DID:    "did:plc:bob",
		Handle: "bob.test",
		JWT:    client.JWT{Access: "bob-access-1", Refresh: "bob-refresh-1"},
	}
)

// Run exercises the Storage contract: ErrNoSession when empty, read-your-last-write,
// overwrite on save, rejection of nil, and Clear when the backend supports it.
func Run(t *testing.T, newStorage Factory) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Load(context.Background())
		if !errors.Is(err, client.ErrNoSession) {
			t.Errorf("Load() on empty storage error = %v, want ErrNoSession", err)
		}
	})

	t.Run("SaveThenLoad", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		session := Alice
		if err := s.Save(ctx, &session); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if *got != Alice {
			t.Errorf("Load() = %+v, want %+v", *got, Alice)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		first, second := Alice, Alice
		second.JWT = client.JWT{Access: "alice-access-2", Refresh: "alice-refresh-2"}
		if err := s.Save(ctx, &first); err != nil {
			t.Fatalf("Save(first) unexpected error: %v", err)
		}
		if err := s.Save(ctx, &second); err != nil {
			t.Fatalf("Save(second) unexpected error: %v", err)
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if *got != second {
			t.Errorf("Load() = %+v, want last write %+v", *got, second)
		}
	})

	t.Run("SaveReplacesIdentity", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		a, b := Alice, Bob
		if err := s.Save(ctx, &a); err != nil {
			t.Fatalf("Save(alice) unexpected error: %v", err)
		}
		if err := s.Save(ctx, &b); err != nil {
			t.Fatalf("Save(bob) unexpected error: %v", err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if *got != Bob {
			t.Errorf("Load() = %+v, want %+v", *got, Bob)
		}
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		session := Alice
		if err := s.Save(ctx, &session); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}
		session.JWT.Access = "mutated-after-save"

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		got.JWT.Access = "mutated-after-load"

		again, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if *again != Alice {
			t.Errorf("stored session changed through a caller's pointer: %+v", *again)
		}
	})

	t.Run("SaveNilKeepsPrevious", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		session := Alice
		if err := s.Save(ctx, &session); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}
		if err := s.Save(ctx, nil); !errors.Is(err, client.ErrNilSession) {
			t.Fatalf("Save(nil) error = %v, want ErrNilSession", err)
		}

		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if *got != Alice {
			t.Errorf("Load() after Save(nil) = %+v, want %+v", *got, Alice)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStorage(t)
		clearer, ok := s.(client.Clearer)
		if !ok {
			t.Skip("backend does not implement client.Clearer")
		}
		ctx := context.Background()

		session := Alice
		if err := s.Save(ctx, &session); err != nil {
			t.Fatalf("Save() unexpected error: %v", err)
		}
		if err := clearer.Clear(ctx); err != nil {
			t.Fatalf("Clear() unexpected error: %v", err)
		}
		if _, err := s.Load(ctx); !errors.Is(err, client.ErrNoSession) {
			t.Errorf("Load() after Clear() error = %v, want ErrNoSession", err)
		}
		if err := clearer.Clear(ctx); err != nil {
			t.Errorf("Clear() on empty storage unexpected error: %v", err)
		}
	})
}
