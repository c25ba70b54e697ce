// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsQueueDepth(t *testing.T) {
	store := NewQueueStore()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, store.Len)
	require.NoError(t, err)

	require.NoError(t, store.Push(Secundaria, WorkItem{Numbers: []int{1, 2}, Queue: Secundaria}))
	require.NoError(t, store.Push(Secundaria, WorkItem{Numbers: []int{3, 4}, Queue: Secundaria}))

	expected := `
# HELP tribroker_queue_depth Work items pending in a queue.
# TYPE tribroker_queue_depth gauge
tribroker_queue_depth{queue="principal"} 0
tribroker_queue_depth{queue="secundaria"} 2
tribroker_queue_depth{queue="terciaria"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tribroker_queue_depth"))

	m.Generated.WithLabelValues("principal").Add(3)
	m.Dropped.Inc()
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Generated.WithLabelValues("principal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dropped))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	// generated{principal}, applied, dropped, sessions and three depths.
	assert.Equal(t, 7, n)
}

func TestBrokerGeneratorFeedsMetrics(t *testing.T) {
	b, err := NewBroker(WithLogger(DevNullLogger), WithSeed(5, 6))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		item := b.gen.Next()
		require.NoError(t, b.store.Push(item.Queue, item))
		b.gen.onItem(item)
	}

	var total float64
	for _, q := range Queues {
		n := testutil.ToFloat64(b.Metrics().Generated.WithLabelValues(q.String()))
		assert.Equal(t, float64(b.Store().Len(q)), n)
		total += n
	}
	assert.Equal(t, float64(100), total)
}
