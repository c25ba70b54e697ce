// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"sort"
	"sync"
)

// AggregationState collects the results returned by subscribers. Every
// mutation goes through Apply under a single lock, so the total and the
// per-client registries are consistent at every observation point.
type AggregationState struct {
	mu                sync.Mutex
	allResults        []int64
	byClient          map[string][]int64
	subscriptionsSeen map[string]QueueSet
	total             int
	sum               int64
	dropped           int
	target            int
	running           bool
	done              chan struct{}
}

// NewAggregationState returns a running state that stops once target
// results have been applied.
func NewAggregationState(target int) *AggregationState {
	return &AggregationState{
		byClient:          make(map[string][]int64),
		subscriptionsSeen: make(map[string]QueueSet),
		target:            target,
		running:           true,
		done:              make(chan struct{}),
	}
}

// ApplyResult tells what Apply did with a record.
type ApplyResult int

const (
	// Applied means the record was folded into the state.
	Applied ApplyResult = iota
	// TargetReached means the record was folded in and brought the total
	// to the target. Exactly one call observes it.
	TargetReached
	// Dropped means the target had already been reached; the record left
	// the registries untouched.
	Dropped
)

func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case TargetReached:
		return "target reached"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Apply folds rec into the state and returns the new total.
func (a *AggregationState) Apply(rec ResultRecord) (int, ApplyResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		a.dropped++
		return a.total, Dropped
	}

	a.allResults = append(a.allResults, rec.Value)
	a.byClient[rec.ClientID] = append(a.byClient[rec.ClientID], rec.Value)
	a.subscriptionsSeen[rec.ClientID] = a.subscriptionsSeen[rec.ClientID].Union(rec.DeclaredQueues)
	a.total++
	a.sum += rec.Value

	if a.total >= a.target {
		a.running = false
		close(a.done)
		return a.total, TargetReached
	}
	return a.total, Applied
}

// Running reports whether the target is still ahead.
func (a *AggregationState) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Done is closed the moment the target is reached.
func (a *AggregationState) Done() <-chan struct{} {
	return a.done
}

func (a *AggregationState) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *AggregationState) Target() int { return a.target }

// Results returns a copy of every applied value in application order.
func (a *AggregationState) Results() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.allResults...)
}

// ClientResults returns a copy of the values applied for id.
func (a *AggregationState) ClientResults(id string) []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.byClient[id]...)
}

// ClientSummary describes one client in a snapshot.
type ClientSummary struct {
	ID      string   `json:"id"`
	Results int      `json:"results"`
	Sum     int64    `json:"sum"`
	Queues  QueueSet `json:"queues"`
}

// AggregationSnapshot is a consistent copy of the counters and registries.
type AggregationSnapshot struct {
	Total   int
	Sum     int64
	Dropped int
	Target  int
	Running bool
	Clients []ClientSummary // sorted by ID
}

func (a *AggregationState) Snapshot() AggregationSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := AggregationSnapshot{
		Total:   a.total,
		Sum:     a.sum,
		Dropped: a.dropped,
		Target:  a.target,
		Running: a.running,
		Clients: make([]ClientSummary, 0, len(a.byClient)),
	}
	for id, values := range a.byClient {
		var sum int64
		for _, v := range values {
			sum += v
		}
		snap.Clients = append(snap.Clients, ClientSummary{
			ID:      id,
			Results: len(values),
			Sum:     sum,
			Queues:  a.subscriptionsSeen[id],
		})
	}
	sort.Slice(snap.Clients, func(i, j int) bool {
		return snap.Clients[i].ID < snap.Clients[j].ID
	})
	return snap
}
