// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// compactThreshold bounds how many consumed slots a queue keeps at the
// front of its backing slice before shifting the live items down.
const compactThreshold = 1024

// fifo is an unbounded FIFO of work items. Consumers waiting on an empty
// queue are woken through a one-slot signal channel instead of polling.
type fifo struct {
	mu     sync.Mutex
	items  []WorkItem
	head   int
	signal chan struct{}
}

func newFIFO() *fifo {
	return &fifo{signal: make(chan struct{}, 1)}
}

func (q *fifo) push(item WorkItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.notify()
}

func (q *fifo) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *fifo) tryPop() (WorkItem, bool) {
	q.mu.Lock()
	if q.head == len(q.items) {
		q.mu.Unlock()
		return WorkItem{}, false
	}

	item := q.items[q.head]
	q.items[q.head] = WorkItem{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	remaining := len(q.items) - q.head
	q.mu.Unlock()

	// Hand the wake-up on to the next waiter while items are left.
	if remaining > 0 {
		q.notify()
	}
	return item, true
}

func (q *fifo) pop(ctx context.Context, timeout time.Duration) (WorkItem, bool) {
	if item, ok := q.tryPop(); ok {
		return item, true
	}
	if timeout <= 0 {
		return WorkItem{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.signal:
			if item, ok := q.tryPop(); ok {
				return item, true
			}
		case <-timer.C:
			return WorkItem{}, false
		case <-ctx.Done():
			return WorkItem{}, false
		}
	}
}

func (q *fifo) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// QueueStore holds the three independent queues. It is safe for concurrent
// use by one producer and any number of consumers.
type QueueStore struct {
	queues [queueCount]*fifo
}

func NewQueueStore() *QueueStore {
	var s QueueStore
	for i := range s.queues {
		s.queues[i] = newFIFO()
	}
	return &s
}

// Push appends item to queue q. It never blocks.
func (s *QueueStore) Push(q QueueID, item WorkItem) error {
	if !q.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownQueue, uint8(q))
	}
	s.queues[q].push(item)
	return nil
}

// Pop removes the oldest item of queue q, waiting at most timeout for one to
// arrive. It reports false when the queue stayed empty, the timeout elapsed
// or ctx was cancelled.
func (s *QueueStore) Pop(ctx context.Context, q QueueID, timeout time.Duration) (WorkItem, bool) {
	if !q.Valid() {
		return WorkItem{}, false
	}
	return s.queues[q].pop(ctx, timeout)
}

// Len returns the number of items pending in q.
func (s *QueueStore) Len(q QueueID) int {
	if !q.Valid() {
		return 0
	}
	return s.queues[q].len()
}

// Depths returns the pending item count of every queue.
func (s *QueueStore) Depths() map[QueueID]int {
	out := make(map[QueueID]int, queueCount)
	for _, q := range Queues {
		out[q] = s.queues[q].len()
	}
	return out
}
