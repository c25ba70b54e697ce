// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"sort"
	"sync"
	"testing"
)

// ResultTracker records, per client, the values a subscriber computed in the
// order it sent them.
type ResultTracker struct {
	mu   sync.Mutex
	sent map[string][]int64
}

// NewResultTracker creates an empty tracker.
func NewResultTracker() *ResultTracker {
	return &ResultTracker{sent: make(map[string][]int64)}
}

// Record notes that client sent v.
func (rt *ResultTracker) Record(client string, v int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.sent[client] = append(rt.sent[client], v)
}

// Sent returns a copy of the values recorded for client.
func (rt *ResultTracker) Sent(client string) []int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]int64(nil), rt.sent[client]...)
}

// Clients returns the recorded client identifiers, sorted.
func (rt *ResultTracker) Clients() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]string, 0, len(rt.sent))
	for id := range rt.sent {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// VerifyPrefix checks that the values the broker applied for client are a
// prefix of what the client sent: nothing invented, nothing reordered on a
// single connection, and only a tail lost once the broker stopped.
func (rt *ResultTracker) VerifyPrefix(t testing.TB, client string, applied []int64) {
	t.Helper()

	sent := rt.Sent(client)
	if len(applied) > len(sent) {
		t.Errorf("client %s: broker applied %d results, client sent %d", client, len(applied), len(sent))
		return
	}
	for i, v := range applied {
		if sent[i] != v {
			t.Errorf("client %s: result #%d mismatch: applied %d, sent %d", client, i, v, sent[i])
			return
		}
	}
}
