package protocol

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementalGenerator(t *testing.T) {
	g := NewIncrementalGenerator()

	for i, want := range []string{"0", "1", "2", "3"} {
		if got := g.Generate(); got != want {
			t.Errorf("Generate() #%d = %q, want %q", i, got, want)
		}
	}
}

func TestIncrementalGeneratorsAreIndependent(t *testing.T) {
	a, b := NewIncrementalGenerator(), NewIncrementalGenerator()
	a.Generate()
	a.Generate()

	assert.Equal(t, "0", b.Generate())
	assert.Equal(t, "2", a.Generate())
}

func TestIncrementalGeneratorConcurrentUnique(t *testing.T) {
	g := NewIncrementalGenerator()

	const workers, perWorker = 8, 500
	ids := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- g.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()

	first, second := g.Generate(), g.Generate()
	assert.NotEqual(t, first, second)

	_, err := uuid.Parse(first)
	assert.NoError(t, err)
}
