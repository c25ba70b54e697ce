// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// Generator produces work items and pushes them into a QueueStore through a
// Router. Next and Run must not be called concurrently.
type Generator struct {
	store  *QueueStore
	router *Router
	rng    *rand.Rand
	now    func() time.Time

	yieldEvery int
	yieldPause time.Duration

	nextID    uint64
	generated atomic.Uint64
	onItem    func(WorkItem)
}

// NewGenerator returns a generator that pauses for yieldPause after every
// yieldEvery items. A zero yieldEvery disables the pause.
func NewGenerator(store *QueueStore, router *Router, rng *rand.Rand, yieldEvery int, yieldPause time.Duration) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		store:      store,
		router:     router,
		rng:        rng,
		now:        time.Now,
		yieldEvery: yieldEvery,
		yieldPause: yieldPause,
	}
}

// Numbers draws 2 or 3 integers uniformly in [MinValue, MaxValue].
func (g *Generator) Numbers() []int {
	n := MinNumbers + g.rng.IntN(MaxNumbers-MinNumbers+1)
	numbers := make([]int, n)
	for i := range numbers {
		numbers[i] = MinValue + g.rng.IntN(MaxValue-MinValue+1)
	}
	return numbers
}

// Next builds the next item and routes it, without pushing it.
func (g *Generator) Next() WorkItem {
	numbers := g.Numbers()
	now := g.now()
	item := WorkItem{
		ID:        g.nextID,
		Numbers:   numbers,
		Queue:     g.router.Select(numbers),
		Timestamp: float64(now.UnixNano()) / 1e9,
	}
	g.nextID++
	return item
}

// Generated returns how many items Run has pushed so far.
func (g *Generator) Generated() uint64 {
	return g.generated.Load()
}

// Run pushes items until ctx is done. Push never blocks, so the loop is
// throttled only by the periodic yield.
func (g *Generator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		item := g.Next()
		if err := g.store.Push(item.Queue, item); err != nil {
			return err
		}
		n := g.generated.Add(1)
		if g.onItem != nil {
			g.onItem(item)
		}

		if g.yieldEvery > 0 && n%uint64(g.yieldEvery) == 0 {
			timer := time.NewTimer(g.yieldPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}
