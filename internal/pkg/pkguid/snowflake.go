package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// snowflakeEpoch is 2026-01-01T00:00:00Z in milliseconds.
const snowflakeEpoch int64 = 1767225600000

// Snowflake generates numeric IDs using the Snowflake algorithm. Sample runs
// use them so history sorts by creation time.
type Snowflake struct {
	node *snowflake.Node
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	err := binary.Read(rand.Reader, binary.BigEndian, &nodeID)
	if err != nil {
		return 0, err
	}

	return nodeID & (1<<10 - 1), nil // 10 bits for the node
}

// NewSnowflake constructs a Snowflake generator with a random node ID.
func NewSnowflake() (*Snowflake, error) {
	nodeID, err := generateRandomNodeID()
	if err != nil {
		return nil, err
	}

	snowflake.Epoch = snowflakeEpoch

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique numeric ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

// GenerateString returns a new ID in decimal form.
func (s *Snowflake) GenerateString() string {
	return strconv.FormatInt(s.Generate(), 10)
}
