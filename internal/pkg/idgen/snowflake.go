package idgen

import (
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	mu   sync.Mutex
)

// Initialize sets up the Snowflake ID generator with a node ID.
// An out-of-range nodeID is always an error. Once a node exists, later valid
// calls have no effect.
func Initialize(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node = n
	}
	return nil
}

// GenerateID generates a new Snowflake ID as a string.
// Without Initialize, the node ID is derived from the process ID so that
// concurrent CLI invocations produce distinct IDs.
func GenerateID() string {
	mu.Lock()
	if node == nil {
		// pid modulo the node range is always a valid node ID
		node, _ = snowflake.NewNode(int64(os.Getpid()) % (int64(1) << snowflake.NodeBits))
	}
	n := node
	mu.Unlock()
	return n.Generate().String()
}
