package fenced

import (
	"github.com/vkngwrapper/graphics/internal/utils"
)

// PoolHandler creates, resets, and destroys the objects held by a Pool
type PoolHandler[T any] interface {
	// Create builds a brand-new object when no recycled one is available
	Create() (T, error)
	// Reset prepares a recycled object for reuse, for instance by resetting a command buffer
	Reset(obj T) error
	// Destroy releases the native resources behind an object
	Destroy(obj T)
}

// PoolStatistics is a snapshot of a Pool's bookkeeping
type PoolStatistics struct {
	// Created is the number of objects the handler has created
	Created int
	// Recycled is the number of Acquire calls served from the pending queue
	Recycled int
	// Pending is the number of released objects waiting for their value to complete
	Pending int
}

// Pool recycles objects once the submission they were released with has completed. Released
// objects are reused strictly in the order they were released.
type Pool[T any] struct {
	mutex      utils.OptionalMutex
	handler    PoolHandler[T]
	completion Completion

	pending   queue[T]
	created   int
	recycled  int
	destroyed bool
}

// NewPool creates a Pool
//
// handler - Creates, resets, and destroys pooled objects
//
// completion - Reports the highest completed value, usually a Timeline
//
// useMutex - Whether Acquire and Release may be called concurrently
func NewPool[T any](handler PoolHandler[T], completion Completion, useMutex bool) *Pool[T] {
	return &Pool[T]{
		mutex:      utils.OptionalMutex{UseMutex: useMutex},
		handler:    handler,
		completion: completion,
	}
}

// Acquire returns the oldest released object if its value has completed, reset and ready
// for use, or a newly-created object otherwise
func (p *Pool[T]) Acquire() (T, error) {
	// Polling may retire signals into other pools, so it happens outside the mutex
	completed := p.completion.CompletedValue()

	p.mutex.Lock()
	if p.destroyed {
		p.mutex.Unlock()
		panic("attempted to acquire from a destroyed pool")
	}

	head, ok := p.pending.Peek()
	if ok && head.value <= completed {
		p.pending.Pop()
		p.recycled++
		p.mutex.Unlock()

		err := p.handler.Reset(head.item)
		if err != nil {
			p.handler.Destroy(head.item)
			var zero T
			return zero, err
		}
		return head.item, nil
	}
	p.created++
	p.mutex.Unlock()

	obj, err := p.handler.Create()
	if err != nil {
		p.mutex.Lock()
		p.created--
		p.mutex.Unlock()
	}
	return obj, err
}

// Release queues an object for reuse once value has completed
func (p *Pool[T]) Release(value uint64, obj T) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.destroyed {
		panic("attempted to release into a destroyed pool")
	}

	p.pending.Push(value, obj)
}

// Destroy destroys every object waiting in the pool. Objects still held by callers are
// their responsibility. The GPU must be idle.
func (p *Pool[T]) Destroy() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for {
		e, ok := p.pending.Pop()
		if !ok {
			break
		}
		p.handler.Destroy(e.item)
	}
	p.destroyed = true
}

func (p *Pool[T]) Statistics() PoolStatistics {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return PoolStatistics{
		Created:  p.created,
		Recycled: p.recycled,
		Pending:  p.pending.Len(),
	}
}
