package descriptorcache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupfinder/metrics"
)

func counting(calls *int32, value int) func() (int, error) {
	return func() (int, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestGetOrComputeCaches(t *testing.T) {
	c := New[int]("test-basic", 10)
	var calls int32

	v, err := c.GetOrCompute("a", counting(&calls, 7))
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = c.GetOrCompute("a", counting(&calls, 99))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, 1, c.Len())
}

func TestClearForcesRecompute(t *testing.T) {
	c := New[int]("test-clear", 10)
	var calls int32

	_, _ = c.GetOrCompute("a", counting(&calls, 1))
	c.Clear()
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute("a", counting(&calls, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), calls)
}

func TestFullCacheDoesNotRetain(t *testing.T) {
	c := New[int]("test-full", 2)
	var calls int32

	_, _ = c.GetOrCompute("a", counting(&calls, 1))
	_, _ = c.GetOrCompute("b", counting(&calls, 2))
	require.Equal(t, 2, c.Len())

	before := testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("test-full", "uncached"))

	v, err := c.GetOrCompute("c", counting(&calls, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	v, err = c.GetOrCompute("c", counting(&calls, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, int32(4), calls)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("c")
	assert.False(t, ok)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("test-full", "uncached")))

	// existing entries are still served
	v, _ = c.GetOrCompute("a", counting(&calls, 100))
	assert.Equal(t, 1, v)
	assert.Equal(t, int32(4), calls)
}

func TestComputeErrorNotCached(t *testing.T) {
	c := New[int]("test-error", 10)
	boom := errors.New("boom")

	_, err := c.GetOrCompute("a", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestConcurrentAccessNeverExceedsCapacity(t *testing.T) {
	const capacity = 50
	c := New[string]("test-concurrent", capacity)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (i*7+w)%120)
				v, err := c.GetOrCompute(key, func() (string, error) { return "v-" + key, nil })
				assert.NoError(t, err)
				assert.Equal(t, "v-"+key, v)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), capacity)
	assert.Equal(t, capacity, c.Len())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New[int]("test-default", 0).Capacity())
}
