package feed

import "sync/atomic"

// DefaultQueueSize bounds how many posts can wait for the next frame
const DefaultQueueSize = 1024

// Queue hands post text from network goroutines to the render goroutine.
// Any number of producers may Push; exactly one consumer drains it per frame.
type Queue struct {
	ch      chan string
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most size pending posts
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan string, size)}
}

// Push enqueues text without blocking. It reports false and counts a drop when
// the queue is full.
func (q *Queue) Push(text string) bool {
	select {
	case q.ch <- text:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain appends up to max pending posts to dst. max <= 0 drains everything
// that is pending right now.
func (q *Queue) Drain(dst []string, max int) []string {
	if max <= 0 {
		max = cap(q.ch)
	}
	for i := 0; i < max; i++ {
		select {
		case text := <-q.ch:
			dst = append(dst, text)
		default:
			return dst
		}
	}
	return dst
}

// Len returns the number of pending posts
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many posts were refused because the queue was full
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
