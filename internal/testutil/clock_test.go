package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current(), "Current does not advance")
}

func TestDeterministicClock_ResetReplaysIDs(t *testing.T) {
	clock := NewDeterministicClock()
	first := []int64{clock.Next(), clock.Next(), clock.Next()}

	clock.Reset()
	second := []int64{clock.Next(), clock.Next(), clock.Next()}

	assert.Equal(t, first, second)
}

func TestDeterministicClock_ConcurrentCallsAreDense(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines, calls = 50, 40

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := clock.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls)
	for i := int64(1); i <= goroutines*calls; i++ {
		assert.True(t, seen[i], "missing call id %d", i)
	}
}
