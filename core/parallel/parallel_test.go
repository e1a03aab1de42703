package parallel

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	const n = 1000
	seen := make([]int32, n)
	Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, v := range seen {
		require.Equal(t, int32(1), v, "item %d", i)
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 2, Workers(2, 10))
	assert.Equal(t, 3, Workers(8, 3))
	assert.Equal(t, 1, Workers(0, 1))
	assert.Equal(t, min(runtime.NumCPU(), 1000), Workers(-1, 1000))
}

func TestForEachRunsEveryIndex(t *testing.T) {
	for _, jobs := range []int{1, 3, -1} {
		out := make([]int, 50)
		err := ForEach(len(out), jobs, func(i int) error {
			out[i] = i * i
			return nil
		})
		require.NoError(t, err)
		for i, v := range out {
			assert.Equal(t, i*i, v)
		}
	}
}

func TestForEachReturnsLowestIndexError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	var ran int32
	err := ForEach(20, 4, func(i int) error {
		atomic.AddInt32(&ran, 1)
		switch i {
		case 5:
			return errA
		case 15:
			return errB
		}
		return nil
	})
	assert.Equal(t, errA, err)
	assert.Equal(t, int32(20), ran)
}
