// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestQueueIDNames(t *testing.T) {
	for i, name := range []string{"principal", "secundaria", "terciaria"} {
		q, err := ParseQueueID(name)
		require.NoError(t, err)
		assert.Equal(t, Queues[i], q)
		assert.Equal(t, name, q.String())
	}

	_, err := ParseQueueID("cuarta")
	assert.ErrorIs(t, err, ErrUnknownQueue)

	assert.False(t, QueueID(3).Valid())
	assert.Equal(t, "QueueID(3)", QueueID(3).String())
}

func TestQueueSet(t *testing.T) {
	var empty QueueSet
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Slice())
	assert.Equal(t, "", empty.String())

	s := NewQueueSet(Terciaria, Principal, Terciaria)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(Principal))
	assert.False(t, s.Has(Secundaria))
	assert.True(t, s.Has(Terciaria))
	assert.Equal(t, []QueueID{Principal, Terciaria}, s.Slice())
	assert.Equal(t, "principal, terciaria", s.String())

	assert.Equal(t, s, s.Add(QueueID(7)), "invalid ids are ignored")

	u := s.Union(NewQueueSet(Secundaria))
	assert.Equal(t, 3, u.Len())
	assert.Equal(t, []string{"principal", "secundaria", "terciaria"}, u.Names())

	js, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["principal","terciaria"]`, string(js))
}

func TestWorkItemRoundTrip(t *testing.T) {
	item := WorkItem{
		ID:        42,
		Numbers:   []int{1, 50, 100},
		Queue:     Secundaria,
		Timestamp: 1700000000.25,
	}

	p, err := MarshalWorkItem(item)
	require.NoError(t, err)
	got, err := UnmarshalWorkItem(p)
	require.NoError(t, err)
	assert.Equal(t, item, got)
	assert.Equal(t, time.Unix(1700000000, 250_000_000), got.CreatedAt())
}

func TestWorkItemWireFormat(t *testing.T) {
	p, err := MarshalWorkItem(WorkItem{ID: 1, Numbers: []int{2, 3}, Queue: Terciaria})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(p, &m))
	assert.Equal(t, "terciaria", m["queue"])
	assert.Contains(t, m, "id")
	assert.Contains(t, m, "numbers")
	assert.Contains(t, m, "timestamp")
}

func TestWorkItemValidate(t *testing.T) {
	tests := []struct {
		name string
		item WorkItem
		ok   bool
	}{
		{"two", WorkItem{Numbers: []int{1, 100}}, true},
		{"three", WorkItem{Numbers: []int{5, 6, 7}, Queue: Terciaria}, true},
		{"one", WorkItem{Numbers: []int{1}}, false},
		{"four", WorkItem{Numbers: []int{1, 2, 3, 4}}, false},
		{"zero", WorkItem{Numbers: []int{0, 2}}, false},
		{"above-max", WorkItem{Numbers: []int{2, 101}}, false},
		{"bad-queue", WorkItem{Numbers: []int{2, 3}, Queue: QueueID(3)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidItem)
		})
	}

	_, err := MarshalWorkItem(WorkItem{Numbers: []int{1}})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestUnmarshalWorkItemUnknownQueue(t *testing.T) {
	p, err := msgpack.Marshal(map[string]any{
		"id":        1,
		"numbers":   []int{1, 2},
		"queue":     "cuarta",
		"timestamp": 0.0,
	})
	require.NoError(t, err)

	_, err = UnmarshalWorkItem(p)
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestSubscription(t *testing.T) {
	sub := Subscription{ClientID: "c1", Queues: NewQueueSet(Principal, Terciaria)}
	p, err := MarshalSubscription(sub)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(p, &m))
	assert.Equal(t, []any{"principal", "terciaria"}, m["queues"])

	got, err := UnmarshalSubscription(p)
	require.NoError(t, err)
	assert.Equal(t, sub, got)
}

func TestSubscriptionValidate(t *testing.T) {
	_, err := MarshalSubscription(Subscription{ClientID: "none"})
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	all := NewQueueSet(Principal, Secundaria, Terciaria)
	_, err = MarshalSubscription(Subscription{ClientID: "all", Queues: all})
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	// A peer can still put three queues on the wire.
	p, err := msgpack.Marshal(map[string]any{
		"client_id": "all",
		"queues":    []string{"principal", "secundaria", "terciaria"},
	})
	require.NoError(t, err)
	_, err = UnmarshalSubscription(p)
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	p, err = msgpack.Marshal(map[string]any{
		"client_id": "bad",
		"queues":    []string{"cuarta"},
	})
	require.NoError(t, err)
	_, err = UnmarshalSubscription(p)
	assert.ErrorIs(t, err, ErrUnknownQueue)

	_, err = UnmarshalSubscription([]byte{0xc1})
	assert.Error(t, err)
}

func TestSubscriptionMissingClientID(t *testing.T) {
	p, err := msgpack.Marshal(map[string]any{"queues": []string{"secundaria"}})
	require.NoError(t, err)

	sub, err := UnmarshalSubscription(p)
	require.NoError(t, err)
	assert.Equal(t, "unknown", sub.ClientID)
	assert.Equal(t, NewQueueSet(Secundaria), sub.Queues)
}

func TestResultRecord(t *testing.T) {
	rec := ResultRecord{ClientID: "c9", Value: 3969, DeclaredQueues: NewQueueSet(Secundaria)}
	p, err := MarshalResultRecord(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(p, &m))
	assert.Contains(t, m, "resultado")
	assert.Equal(t, []any{"secundaria"}, m["colas_suscritas"])

	got, err := UnmarshalResultRecord(p)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	p, err = msgpack.Marshal(map[string]any{"resultado": 4})
	require.NoError(t, err)
	got, err = UnmarshalResultRecord(p)
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.ClientID)
	assert.EqualValues(t, 4, got.Value)

	_, err = UnmarshalResultRecord([]byte{0xc1})
	assert.Error(t, err)
}
