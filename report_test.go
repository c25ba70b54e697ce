// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"bytes"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *Report {
	return &Report{
		Policy:     "weighted",
		Target:     1_000_000,
		Total:      1_000_000,
		Sum:        12_345_678_901,
		Dropped:    3,
		Generated:  1_200_000,
		Dispatched: 1_000_004,
		Pending:    map[string]int{"principal": 100_000, "secundaria": 60_000, "terciaria": 39_996},
		Clients: []ClientSummary{
			{ID: "a", Results: 600_000, Sum: 1, Queues: NewQueueSet(Principal)},
			{ID: "b", Results: 400_000, Sum: 2, Queues: NewQueueSet(Secundaria, Terciaria)},
		},
		Elapsed: 1500 * time.Millisecond,
		Reason:  StopTargetReached,
	}
}

func TestReportWriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := testReport().WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)

	out := buf.String()
	for _, want := range []string{
		"BROKER FINAL REPORT (target reached)",
		"Policy: weighted",
		"Results received: 1,000,000 / 1,000,000",
		"Sum of results: 12,345,678,901",
		"Results dropped after target: 3",
		"pending in principal: 100,000",
		"pending in terciaria: 39,996",
		"Unique clients: 2",
		"Client a:",
		"  - Subscribed queues: principal",
		"  - Subscribed queues: secundaria, terciaria",
		"  - Results processed: 400,000",
		"Elapsed: 1.5s",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Client a:")), bytes.Index(buf.Bytes(), []byte("Client b:")))
}

func TestReportWriteToOmitsDroppedWhenZero(t *testing.T) {
	r := testReport()
	r.Dropped = 0
	r.Reason = StopInterrupted

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "BROKER FINAL REPORT (interrupted)")
}

func TestReportJSON(t *testing.T) {
	p, err := testReport().JSON()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(p, &m))
	assert.Equal(t, "weighted", m["policy"])
	assert.Equal(t, "target reached", m["reason"])
	assert.EqualValues(t, 1_000_000, m["total"])

	clients, ok := m["clients"].([]any)
	require.True(t, ok)
	require.Len(t, clients, 2)
	b := clients[1].(map[string]any)
	assert.Equal(t, "b", b["id"])
	assert.Equal(t, []any{"secundaria", "terciaria"}, b["queues"])
}
