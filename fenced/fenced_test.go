package fenced

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// testSignal simulates a fence. Wait completes it, as if the GPU caught up.
type testSignal struct {
	done    atomic.Bool
	err     error
	waitErr error
}

func (s *testSignal) Signaled() (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.done.Load(), nil
}

func (s *testSignal) Wait() error {
	if s.waitErr != nil {
		return s.waitErr
	}
	s.done.Store(true)
	return nil
}

type fixedCompletion struct {
	value uint64
}

func (c *fixedCompletion) CompletedValue() uint64 {
	return atomic.LoadUint64(&c.value)
}

type testObject struct {
	id    int
	reset int
}

type testHandler struct {
	nextID    int
	destroyed []int
	resetErr  error
}

func (h *testHandler) Create() (*testObject, error) {
	h.nextID++
	return &testObject{id: h.nextID}, nil
}

func (h *testHandler) Reset(obj *testObject) error {
	if h.resetErr != nil {
		return h.resetErr
	}
	obj.reset++
	return nil
}

func (h *testHandler) Destroy(obj *testObject) {
	h.destroyed = append(h.destroyed, obj.id)
}

func TestTimeline_Initial(t *testing.T) {
	timeline := NewTimeline(nil)

	require.Equal(t, uint64(1), timeline.NextValue())
	require.Equal(t, uint64(0), timeline.CompletedValue())
	require.True(t, timeline.IsComplete(0))
	require.False(t, timeline.IsComplete(1))
	require.NoError(t, timeline.Drain())
}

func TestTimeline_CompletesInOrder(t *testing.T) {
	var retired []uint64
	timeline := NewTimeline(func(value uint64, signal Signal) {
		retired = append(retired, value)
	})

	first, second, third := &testSignal{}, &testSignal{}, &testSignal{}
	require.Equal(t, uint64(1), timeline.Enqueue(first))
	require.Equal(t, uint64(2), timeline.Enqueue(second))
	require.Equal(t, uint64(3), timeline.Enqueue(third))
	require.Equal(t, uint64(4), timeline.NextValue())

	// The second signal alone can't move the completed value past the first
	second.done.Store(true)
	require.Equal(t, uint64(0), timeline.CompletedValue())
	require.Empty(t, retired)

	first.done.Store(true)
	require.Equal(t, uint64(2), timeline.CompletedValue())
	require.Equal(t, []uint64{1, 2}, retired)
	require.Equal(t, 1, timeline.PendingCount())

	require.True(t, timeline.IsComplete(2))
	require.False(t, timeline.IsComplete(3))
}

func TestTimeline_Monotonic(t *testing.T) {
	timeline := NewTimeline(nil)
	random := rand.New(rand.NewSource(42))

	var signals []*testSignal
	for i := 0; i < 200; i++ {
		signal := &testSignal{}
		signals = append(signals, signal)
		timeline.Enqueue(signal)
	}

	var last uint64
	completedUpTo := 0
	for completedUpTo < len(signals) {
		// The GPU completes a prefix of the outstanding work
		completedUpTo += random.Intn(5)
		if completedUpTo > len(signals) {
			completedUpTo = len(signals)
		}
		for i := 0; i < completedUpTo; i++ {
			signals[i].done.Store(true)
		}

		completed := timeline.CompletedValue()
		require.GreaterOrEqual(t, completed, last)
		require.Equal(t, uint64(completedUpTo), completed)
		last = completed
	}
}

func TestTimeline_Wait(t *testing.T) {
	retireCount := 0
	timeline := NewTimeline(func(value uint64, signal Signal) {
		retireCount++
	})

	for i := 0; i < 3; i++ {
		timeline.Enqueue(&testSignal{})
	}

	require.NoError(t, timeline.Wait(2))
	require.True(t, timeline.IsComplete(2))
	require.False(t, timeline.IsComplete(3))
	require.Equal(t, 2, retireCount)

	require.NoError(t, timeline.Drain())
	require.Equal(t, uint64(3), timeline.CompletedValue())
	require.Equal(t, 3, retireCount)
}

func TestTimeline_WaitNeverSubmitted(t *testing.T) {
	timeline := NewTimeline(nil)
	timeline.Enqueue(&testSignal{})

	err := timeline.Wait(2)
	require.ErrorIs(t, err, ErrNeverSubmitted)
}

func TestTimeline_Advance(t *testing.T) {
	timeline := NewTimeline(func(value uint64, signal Signal) {
		require.Fail(t, "stand-in signals are never retired to the owner")
	})

	require.Equal(t, uint64(1), timeline.Advance())
	require.True(t, timeline.IsComplete(1))

	blocking := &testSignal{}
	timeline = NewTimeline(nil)
	timeline.Enqueue(blocking)
	advanced := timeline.Advance()
	require.False(t, timeline.IsComplete(advanced))

	blocking.done.Store(true)
	require.True(t, timeline.IsComplete(advanced))
}

func TestTimeline_DeviceLost(t *testing.T) {
	lost := errors.New("device lost")
	timeline := NewTimeline(nil)
	timeline.Enqueue(&testSignal{err: lost, waitErr: lost})

	require.Equal(t, uint64(0), timeline.CompletedValue())
	require.ErrorIs(t, timeline.Err(), lost)
	require.ErrorIs(t, timeline.Wait(1), lost)
	require.False(t, timeline.IsComplete(1))
}

func TestPool_RecyclesInReleaseOrder(t *testing.T) {
	completion := &fixedCompletion{}
	handler := &testHandler{}
	pool := NewPool[*testObject](handler, completion, true)

	a, err := pool.Acquire()
	require.NoError(t, err)
	b, err := pool.Acquire()
	require.NoError(t, err)

	pool.Release(5, a)
	pool.Release(7, b)

	completion.value = 7

	first, err := pool.Acquire()
	require.NoError(t, err)
	second, err := pool.Acquire()
	require.NoError(t, err)

	require.Same(t, a, first)
	require.Same(t, b, second)
	require.Equal(t, 1, first.reset)
	require.Equal(t, 1, second.reset)

	third, err := pool.Acquire()
	require.NoError(t, err)
	require.Equal(t, 3, third.id)

	require.Equal(t, PoolStatistics{Created: 3, Recycled: 2, Pending: 0}, pool.Statistics())
}

func TestPool_NeverReusesIncomplete(t *testing.T) {
	completion := &fixedCompletion{}
	handler := &testHandler{}
	pool := NewPool[*testObject](handler, completion, false)

	obj, err := pool.Acquire()
	require.NoError(t, err)
	pool.Release(10, obj)

	for value := uint64(0); value < 10; value++ {
		completion.value = value
		next, err := pool.Acquire()
		require.NoError(t, err)
		require.NotSame(t, obj, next)
	}

	completion.value = 10
	next, err := pool.Acquire()
	require.NoError(t, err)
	require.Same(t, obj, next)
}

func TestPool_ResetFailure(t *testing.T) {
	completion := &fixedCompletion{value: 1}
	resetErr := errors.New("reset failed")
	handler := &testHandler{}
	pool := NewPool[*testObject](handler, completion, true)

	obj, err := pool.Acquire()
	require.NoError(t, err)
	pool.Release(1, obj)

	handler.resetErr = resetErr
	_, err = pool.Acquire()
	require.ErrorIs(t, err, resetErr)
	require.Equal(t, []int{obj.id}, handler.destroyed)
}

func TestPool_Destroy(t *testing.T) {
	completion := &fixedCompletion{}
	handler := &testHandler{}
	pool := NewPool[*testObject](handler, completion, true)

	for i := 0; i < 3; i++ {
		obj, err := pool.Acquire()
		require.NoError(t, err)
		pool.Release(uint64(i+1), obj)
	}

	pool.Destroy()
	require.Equal(t, []int{1, 2, 3}, handler.destroyed)
	require.Panics(t, func() {
		pool.Release(4, &testObject{})
	})
}

func TestPool_Concurrent(t *testing.T) {
	timeline := NewTimeline(nil)
	handler := &lockedHandler{}
	pool := NewPool[*testObject](handler, timeline, true)

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				obj, err := pool.Acquire()
				require.NoError(t, err)

				signal := &testSignal{}
				value := timeline.Enqueue(signal)
				pool.Release(value, obj)
				signal.done.Store(true)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, timeline.Drain())
	stats := pool.Statistics()
	require.Equal(t, 400, stats.Created+stats.Recycled)
}

type lockedHandler struct {
	lock sync.Mutex
	testHandler
}

func (h *lockedHandler) Create() (*testObject, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.testHandler.Create()
}

func (h *lockedHandler) Reset(obj *testObject) error {
	return nil
}

func TestCollector_Release(t *testing.T) {
	completion := &fixedCompletion{}
	var destroyed []string
	collector := NewCollector[string](completion, func(item string) {
		destroyed = append(destroyed, item)
	}, true)

	collector.Add(1, "image")
	collector.Add(2, "view")
	collector.Add(2, "memory")
	collector.Add(4, "buffer")

	require.Equal(t, 0, collector.Release())
	require.Empty(t, destroyed)

	completion.value = 2
	require.Equal(t, 3, collector.Release())
	require.Equal(t, []string{"image", "view", "memory"}, destroyed)
	require.Equal(t, 1, collector.Len())

	completion.value = 3
	require.Equal(t, 0, collector.Release())
	require.Equal(t, 1, collector.Len())
}

func TestCollector_Dispose(t *testing.T) {
	completion := &fixedCompletion{}
	var destroyed []int
	collector := NewCollector[int](completion, func(item int) {
		destroyed = append(destroyed, item)
	}, false)

	for i := 0; i < 5; i++ {
		collector.Add(uint64(100+i), i)
	}

	require.Equal(t, 5, collector.Dispose())
	require.Equal(t, []int{0, 1, 2, 3, 4}, destroyed)
	require.Equal(t, 0, collector.Len())
	require.Equal(t, 5, collector.DestroyedCount())
}

func TestQueue_Compaction(t *testing.T) {
	var q queue[int]
	for i := 0; i < 100; i++ {
		q.Push(uint64(i), i)
	}
	for i := 0; i < 90; i++ {
		e, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.item)
	}
	require.Equal(t, 10, q.Len())

	q.Push(100, 100)
	for i := 90; i <= 100; i++ {
		e, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.item)
	}

	_, ok := q.Pop()
	require.False(t, ok)
}
