// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tribroker"

// Metrics exposes broker activity as prometheus collectors.
type Metrics struct {
	Generated  *prometheus.CounterVec
	Dispatched *prometheus.CounterVec
	Applied    prometheus.Counter
	Dropped    prometheus.Counter
	Sessions   prometheus.Gauge
}

// NewMetrics registers the broker collectors on reg. depth reports the
// current backlog of a queue.
func NewMetrics(reg prometheus.Registerer, depth func(QueueID) int) (*Metrics, error) {
	m := &Metrics{
		Generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_generated_total",
			Help:      "Work items generated, by destination queue.",
		}, []string{"queue"}),
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "items_dispatched_total",
			Help:      "Work items written to subscribers, by source queue.",
		}, []string{"queue"}),
		Applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "results_applied_total",
			Help:      "Results folded into the aggregation state.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "results_dropped_total",
			Help:      "Results received after the target was reached.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "distribution_sessions",
			Help:      "Subscribers currently connected to the distribution endpoint.",
		}),
	}

	collectors := []prometheus.Collector{m.Generated, m.Dispatched, m.Applied, m.Dropped, m.Sessions}
	for _, q := range Queues {
		q := q
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "queue_depth",
			Help:        "Work items pending in a queue.",
			ConstLabels: prometheus.Labels{"queue": q.String()},
		}, func() float64 { return float64(depth(q)) }))
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
