// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, policy string) (*Generator, *QueueStore) {
	t.Helper()
	router, err := NewRouter(policy, testRNG())
	require.NoError(t, err)
	store := NewQueueStore()
	return NewGenerator(store, router, rand.New(rand.NewPCG(3, 4)), 0, 0), store
}

func TestGeneratorNumbers(t *testing.T) {
	g, _ := newTestGenerator(t, "random")

	lengths := make(map[int]int)
	for i := 0; i < 10_000; i++ {
		numbers := g.Numbers()
		lengths[len(numbers)]++
		for _, v := range numbers {
			require.GreaterOrEqual(t, v, MinValue)
			require.LessOrEqual(t, v, MaxValue)
		}
	}
	assert.Len(t, lengths, 2)
	assert.Positive(t, lengths[MinNumbers])
	assert.Positive(t, lengths[MaxNumbers])
}

func TestGeneratorNext(t *testing.T) {
	g, store := newTestGenerator(t, "conditional")
	fixed := time.Unix(1700000000, 0)
	g.now = func() time.Time { return fixed }

	for i := uint64(0); i < 500; i++ {
		item := g.Next()
		require.NoError(t, item.Validate())
		assert.Equal(t, i, item.ID)
		assert.Equal(t, fixed, item.CreatedAt())
	}
	for _, q := range Queues {
		assert.Zero(t, store.Len(q), "Next must not push")
	}
	assert.Zero(t, g.Generated())
}

func TestGeneratorRun(t *testing.T) {
	g, store := newTestGenerator(t, "weighted")
	g.yieldEvery = 100
	g.yieldPause = time.Millisecond

	var routed [queueCount]int
	g.onItem = func(item WorkItem) { routed[item.Queue]++ }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for g.Generated() < 1000 {
		select {
		case <-deadline:
			t.Fatal("generator too slow")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("generator did not stop")
	}

	total := 0
	for _, q := range Queues {
		assert.Equal(t, routed[q], store.Len(q))
		total += store.Len(q)
	}
	assert.EqualValues(t, g.Generated(), total)

	// Items in each queue come out in generation order.
	for _, q := range Queues {
		var last int64 = -1
		for {
			item, ok := store.Pop(context.Background(), q, 0)
			if !ok {
				break
			}
			assert.Equal(t, q, item.Queue)
			assert.Greater(t, int64(item.ID), last)
			last = int64(item.ID)
		}
	}
}
