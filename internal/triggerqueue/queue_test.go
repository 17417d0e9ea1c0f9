package triggerqueue

import (
	"runtime"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RoundsCapacity(t *testing.T) {
	assert.Equal(t, 2, New[int](0).Cap())
	assert.Equal(t, 2, New[int](2).Cap())
	assert.Equal(t, 8, New[int](5).Cap())
	assert.Equal(t, 64, New[int](64).Cap())
}

func TestPushPop_FIFO(t *testing.T) {
	q := New[int](4)

	_, ok := q.Pop()
	assert.False(t, ok, "empty queue")

	for i := 1; i <= 4; i++ {
		require.True(t, q.Push(i))
	}
	assert.False(t, q.Push(5), "full queue")
	assert.Equal(t, 4, q.Len())

	for i := 1; i <= 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())

	// The ring keeps working after wrapping around.
	for round := 0; round < 10; round++ {
		require.True(t, q.Push(round))
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, round, v)
	}
}

func TestReserve(t *testing.T) {
	q := New[string](2)
	q.Reserve(1)
	assert.Equal(t, 2, q.Cap())

	q.Reserve(100)
	assert.Equal(t, 128, q.Cap())
	for i := 0; i < 100; i++ {
		require.True(t, q.Push("x"))
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const (
		producers   = 8
		perProducer = 2000
	)
	q := New[int](64)

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	done := make(chan struct{})

	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []int
			for {
				if v, ok := q.Pop(); ok {
					local = append(local, v)
					continue
				}
				select {
				case <-done:
					// Drain whatever is left after producers finished.
					for {
						v, ok := q.Pop()
						if !ok {
							mu.Lock()
							got = append(got, local...)
							mu.Unlock()
							return
						}
						local = append(local, v)
					}
				default:
					runtime.Gosched()
				}
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(p*perProducer + i) {
					runtime.Gosched()
				}
			}
		}(p)
	}
	pwg.Wait()
	close(done)
	wg.Wait()

	want := make([]int, producers*perProducer)
	for i := range want {
		want[i] = i
	}
	sort.Ints(got)
	assert.Empty(t, cmp.Diff(want, got), "every value must be popped exactly once")
}
