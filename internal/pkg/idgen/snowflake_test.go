package idgen

import (
	"testing"

	"github.com/bwmarrin/snowflake"
)

// resetNode forgets the package node so a test can choose its own
func resetNode(t *testing.T) {
	t.Helper()
	mu.Lock()
	node = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		node = nil
		mu.Unlock()
	})
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if id == "" {
			t.Fatal("GenerateID() returned empty string")
		}
		if seen[id] {
			t.Fatalf("GenerateID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestInitializeSetsNode(t *testing.T) {
	resetNode(t)

	if err := Initialize(42); err != nil {
		t.Fatalf("Initialize(42) unexpected error: %v", err)
	}
	// A second node ID does not replace the first
	if err := Initialize(7); err != nil {
		t.Fatalf("Initialize(7) unexpected error: %v", err)
	}

	id, err := snowflake.ParseString(GenerateID())
	if err != nil {
		t.Fatalf("ParseString() unexpected error: %v", err)
	}
	if got := id.Node(); got != 42 {
		t.Errorf("GenerateID() node = %d, want 42", got)
	}
}

func TestInitializeRejectsOutOfRange(t *testing.T) {
	resetNode(t)

	tests := []int64{-1, int64(1) << snowflake.NodeBits}
	for _, nodeID := range tests {
		if err := Initialize(nodeID); err == nil {
			t.Errorf("Initialize(%d) = nil, want error", nodeID)
		}
	}

	// Still rejected once a node exists
	if err := Initialize(1); err != nil {
		t.Fatalf("Initialize(1) unexpected error: %v", err)
	}
	if err := Initialize(-1); err == nil {
		t.Error("Initialize(-1) after a node exists = nil, want error")
	}
}
