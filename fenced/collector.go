package fenced

import (
	"github.com/vkngwrapper/graphics/internal/utils"
)

// Collector defers destruction of objects until the submission they were last used in has
// completed
type Collector[T any] struct {
	mutex      utils.OptionalMutex
	completion Completion
	destroy    func(T)

	pending   queue[T]
	destroyed int
}

func NewCollector[T any](completion Completion, destroy func(T), useMutex bool) *Collector[T] {
	return &Collector[T]{
		mutex:      utils.OptionalMutex{UseMutex: useMutex},
		completion: completion,
		destroy:    destroy,
	}
}

// Add queues item for destruction once value has completed
func (c *Collector[T]) Add(value uint64, item T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.pending.Push(value, item)
}

// Release destroys every queued item whose value has completed, in the order they were
// added, and returns how many were destroyed
func (c *Collector[T]) Release() int {
	completed := c.completion.CompletedValue()

	var ready []T
	c.mutex.Lock()
	for {
		head, ok := c.pending.Peek()
		if !ok || head.value > completed {
			break
		}
		c.pending.Pop()
		ready = append(ready, head.item)
	}
	c.destroyed += len(ready)
	c.mutex.Unlock()

	for _, item := range ready {
		c.destroy(item)
	}
	return len(ready)
}

// Dispose destroys every queued item without checking completion. The caller must have
// made sure the GPU is idle.
func (c *Collector[T]) Dispose() int {
	var ready []T
	c.mutex.Lock()
	for {
		e, ok := c.pending.Pop()
		if !ok {
			break
		}
		ready = append(ready, e.item)
	}
	c.destroyed += len(ready)
	c.mutex.Unlock()

	for _, item := range ready {
		c.destroy(item)
	}
	return len(ready)
}

// Len returns the number of items waiting for destruction
func (c *Collector[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.pending.Len()
}

// DestroyedCount returns the number of items destroyed over the collector's lifetime
func (c *Collector[T]) DestroyedCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.destroyed
}
