// Package fenced tracks GPU queue submissions with a monotonically increasing counter and
// recycles or destroys objects once the submission they were last used in has completed.
//
// Every submission to a queue is assigned the next value of a Timeline. Objects that a
// submission referenced are handed to a Pool (to be reset and reused) or a Collector (to be
// destroyed) tagged with that value. Because a queue completes its submissions in order,
// both structures are plain FIFO queues: once the head of the queue is complete, everything
// behind it with a lower value is too.
package fenced
