package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has an effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered request ID. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// NewBase36 returns a short, URL-safe form of a fresh ID.
func NewBase36() string {
	return node.Generate().Base36()
}
