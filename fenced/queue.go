package fenced

// entry pairs a queued object with the timeline value it must wait for
type entry[T any] struct {
	value uint64
	item  T
}

// queue is a FIFO over a reusable slice. Popped slots are zeroed so that the queue does not
// hold on to native handles after they leave it.
type queue[T any] struct {
	items []entry[T]
	head  int
}

func (q *queue[T]) Len() int {
	return len(q.items) - q.head
}

func (q *queue[T]) Push(value uint64, item T) {
	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.items = append(q.items, entry[T]{value: value, item: item})
}

func (q *queue[T]) Peek() (entry[T], bool) {
	if q.Len() == 0 {
		return entry[T]{}, false
	}
	return q.items[q.head], true
}

func (q *queue[T]) Pop() (entry[T], bool) {
	if q.Len() == 0 {
		return entry[T]{}, false
	}

	e := q.items[q.head]
	q.items[q.head] = entry[T]{}
	q.head++

	// Compact once the dead prefix dominates the backing array
	if q.head > 32 && q.head*2 > len(q.items) {
		remaining := copy(q.items, q.items[q.head:])
		for i := remaining; i < len(q.items); i++ {
			q.items[i] = entry[T]{}
		}
		q.items = q.items[:remaining]
		q.head = 0
	}

	return e, true
}
