package fenced

import (
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/graphics/internal/utils"
)

// Signal is a native completion primitive attached to one queue submission, usually a fence
type Signal interface {
	// Signaled reports whether the submission has completed without blocking
	Signaled() (bool, error)
	// Wait blocks until the submission has completed
	Wait() error
}

// Completion exposes the completed value of a Timeline to the structures that recycle
// objects against it
type Completion interface {
	CompletedValue() uint64
}

// RetireFunc is called once for every signal a Timeline has observed as complete. It
// is never called while the timeline's lock is held.
type RetireFunc func(value uint64, signal Signal)

// ErrNeverSubmitted is returned when waiting on a value that no submission has been assigned yet
var ErrNeverSubmitted = errors.New("timeline value has not been submitted")

// Timeline assigns values to queue submissions and tracks the highest value known to be
// complete on the GPU. Values start at 1, so 0 is always complete.
//
// The completed value never decreases, and a value is only reported complete after every
// lower value is complete.
type Timeline struct {
	lock    utils.SpinLock
	pending queue[Signal]

	next      uint64
	completed uint64

	err    atomic.Pointer[error]
	retire RetireFunc
}

func NewTimeline(retire RetireFunc) *Timeline {
	return &Timeline{
		next:   1,
		retire: retire,
	}
}

// NextValue returns the value that the next call to Enqueue will assign. Objects released
// before a submission are tagged with it so that they outlive that submission.
func (t *Timeline) NextValue() uint64 {
	return atomic.LoadUint64(&t.next)
}

// Enqueue assigns the next value to a submission that will trip signal on completion.
// Callers that submit from several goroutines must hold their queue lock across the
// submission and this call so that values follow submission order.
func (t *Timeline) Enqueue(signal Signal) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	value := atomic.AddUint64(&t.next, 1) - 1
	t.pending.Push(value, signal)
	return value
}

// completeSignal stands in for submissions that were already waited on
type completeSignal struct{}

func (completeSignal) Signaled() (bool, error) { return true, nil }
func (completeSignal) Wait() error             { return nil }

// Advance assigns the next value to a submission that has no signal, for instance one that
// has already been waited on. The value completes as soon as every lower value has.
func (t *Timeline) Advance() uint64 {
	value := t.Enqueue(completeSignal{})
	t.CompletedValue()
	return value
}

func (t *Timeline) advanceCompleted(value uint64) {
	for {
		current := atomic.LoadUint64(&t.completed)
		if value <= current {
			return
		}
		if atomic.CompareAndSwapUint64(&t.completed, current, value) {
			return
		}
	}
}

func (t *Timeline) setErr(err error) {
	t.err.CompareAndSwap(nil, &err)
}

// Err returns the first error a signal reported. A failing signal usually means the
// device was lost.
func (t *Timeline) Err() error {
	errPtr := t.err.Load()
	if errPtr == nil {
		return nil
	}
	return *errPtr
}

// CompletedValue polls pending signals in submission order and returns the highest value
// known to be complete
func (t *Timeline) CompletedValue() uint64 {
	var retired []entry[Signal]

	if t.lock.TryLock() {
		for {
			head, ok := t.pending.Peek()
			if !ok {
				break
			}

			signaled, err := head.item.Signaled()
			if err != nil {
				t.setErr(err)
				break
			}
			if !signaled {
				break
			}

			t.pending.Pop()
			retired = append(retired, head)
		}
		t.lock.Unlock()
	}

	t.retireAll(retired, true)
	return atomic.LoadUint64(&t.completed)
}

func (t *Timeline) retireAll(retired []entry[Signal], completed bool) {
	if len(retired) == 0 {
		return
	}

	if completed {
		t.advanceCompleted(retired[len(retired)-1].value)
	}

	if t.retire == nil {
		return
	}
	for _, e := range retired {
		if _, isStandIn := e.item.(completeSignal); isStandIn {
			continue
		}
		t.retire(e.value, e.item)
	}
}

// IsComplete reports whether the submission assigned value has completed
func (t *Timeline) IsComplete(value uint64) bool {
	if value <= atomic.LoadUint64(&t.completed) {
		return true
	}

	return value <= t.CompletedValue()
}

// Wait blocks until the submission assigned value has completed
func (t *Timeline) Wait(value uint64) error {
	if value >= t.NextValue() {
		return errors.Wrapf(ErrNeverSubmitted, "value %d, next value %d", value, t.NextValue())
	}

	for !t.IsComplete(value) {
		t.lock.Lock()
		head, ok := t.pending.Peek()
		if !ok || head.value > value {
			// Another waiter already owns the signal we need
			t.lock.Unlock()
			if err := t.Err(); err != nil {
				return err
			}
			runtime.Gosched()
			continue
		}
		t.pending.Pop()
		t.lock.Unlock()

		err := head.item.Wait()
		if err != nil {
			t.setErr(err)
			// The signal still has to be retired or its owner will leak it
			t.retireAll([]entry[Signal]{head}, false)
			return err
		}

		t.retireAll([]entry[Signal]{head}, true)
	}

	return t.Err()
}

// Drain waits for every submission that has been assigned a value
func (t *Timeline) Drain() error {
	last := t.NextValue() - 1
	if last == 0 {
		return nil
	}
	return t.Wait(last)
}

// PendingCount returns the number of submissions that have not been observed as complete
func (t *Timeline) PendingCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.pending.Len()
}
