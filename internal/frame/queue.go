// Package frame implements the bounded single-producer/single-consumer FIFO
// queue that audio frames move through between the RTP layer and the
// conversation controller (spec.md §4.1 "Audio frame").
package frame

import "context"

// Frame is one 20ms, 160-byte mu-law audio frame. The queue never inspects
// its contents.
type Frame = []byte

// Queue is a bounded FIFO of Frames. It has exactly one producer and one
// consumer; the only guarantee beyond ordering is that Push never blocks the
// producer indefinitely past the queue's capacity.
type Queue struct {
	ch chan Frame
}

// New creates a Queue that holds at most capacity frames before Push starts
// dropping the newest frame.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Frame, capacity)}
}

// Push enqueues a frame. If the queue is full the frame is dropped and Push
// returns false; callers on the RTP RX path treat this as a transient
// overload, not an error.
func (q *Queue) Push(f Frame) bool {
	select {
	case q.ch <- f:
		return true
	default:
		return false
	}
}

// TryPop dequeues a frame without blocking. ok is false if the queue is
// currently empty.
func (q *Queue) TryPop() (f Frame, ok bool) {
	select {
	case f = <-q.ch:
		return f, true
	default:
		return nil, false
	}
}

// Pop dequeues a frame, blocking until one is available or ctx is done. ok is
// false only when ctx was cancelled first.
func (q *Queue) Pop(ctx context.Context) (f Frame, ok bool) {
	select {
	case f = <-q.ch:
		return f, true
	case <-ctx.Done():
		return nil, false
	}
}

// Empty reports whether the queue currently holds no frames. Because the
// queue has a single consumer, a false result is stable until that consumer
// pops, but a true result can become stale the instant the producer pushes.
func (q *Queue) Empty() bool {
	return len(q.ch) == 0
}

// Drain discards every frame currently queued without blocking. Used at turn
// boundaries so frames never cross from one turn into the next.
func (q *Queue) Drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
