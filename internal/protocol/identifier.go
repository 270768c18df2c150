package protocol

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IdentifierGenerator produces correlation ids for outgoing requests.
// Consecutive calls must never return the same value.
type IdentifierGenerator interface {
	Generate() string
}

// IncrementalGenerator hands out "0", "1", "2", ... for the life of the process.
type IncrementalGenerator struct {
	next atomic.Uint64
}

// NewIncrementalGenerator creates a generator starting at "0".
func NewIncrementalGenerator() *IncrementalGenerator {
	return &IncrementalGenerator{}
}

func (g *IncrementalGenerator) Generate() string {
	return strconv.FormatUint(g.next.Add(1)-1, 10)
}

// UUIDGenerator hands out random v4 UUIDs.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
