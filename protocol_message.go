// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownQueue        = errors.New("tribroker: unknown queue")
	ErrInvalidItem         = errors.New("tribroker: invalid work item")
	ErrInvalidSubscription = errors.New("tribroker: invalid subscription")
)

// Work item bounds.
const (
	MinNumbers = 2
	MaxNumbers = 3
	MinValue   = 1
	MaxValue   = 100

	// MaxSubscribedQueues is the largest number of queues a single
	// subscription may declare.
	MaxSubscribedQueues = 2
)

// unknownClient is recorded for peers that did not declare an identifier.
const unknownClient = "unknown"

// QueueID identifies one of the three fixed FIFO lanes.
type QueueID uint8

const (
	Principal QueueID = iota
	Secundaria
	Terciaria

	queueCount = 3
)

// Queues lists every queue identifier in declaration order.
var Queues = [queueCount]QueueID{Principal, Secundaria, Terciaria}

var queueNames = [queueCount]string{"principal", "secundaria", "terciaria"}

// String returns the wire name of the queue.
func (q QueueID) String() string {
	if !q.Valid() {
		return fmt.Sprintf("QueueID(%d)", uint8(q))
	}
	return queueNames[q]
}

// Valid reports whether q is one of the three known queues.
func (q QueueID) Valid() bool {
	return q < queueCount
}

// ParseQueueID maps a wire name back to its queue identifier.
func ParseQueueID(name string) (QueueID, error) {
	for i, n := range queueNames {
		if n == name {
			return QueueID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
}

func (q QueueID) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !q.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownQueue, uint8(q))
	}
	return enc.EncodeString(q.String())
}

func (q *QueueID) DecodeMsgpack(dec *msgpack.Decoder) error {
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	v, err := ParseQueueID(name)
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// QueueSet is a set of queue identifiers.
type QueueSet uint8

// NewQueueSet returns the set holding qs.
func NewQueueSet(qs ...QueueID) QueueSet {
	var s QueueSet
	for _, q := range qs {
		s = s.Add(q)
	}
	return s
}

// Add returns s with q added. Invalid identifiers are ignored.
func (s QueueSet) Add(q QueueID) QueueSet {
	if !q.Valid() {
		return s
	}
	return s | 1<<q
}

func (s QueueSet) Has(q QueueID) bool {
	return q.Valid() && s&(1<<q) != 0
}

func (s QueueSet) Union(o QueueSet) QueueSet {
	return s | o
}

func (s QueueSet) Len() int {
	n := 0
	for _, q := range Queues {
		if s.Has(q) {
			n++
		}
	}
	return n
}

// Slice returns the members of s ordered principal, secundaria, terciaria.
func (s QueueSet) Slice() []QueueID {
	out := make([]QueueID, 0, queueCount)
	for _, q := range Queues {
		if s.Has(q) {
			out = append(out, q)
		}
	}
	return out
}

// Names returns the wire names of the members of s.
func (s QueueSet) Names() []string {
	out := make([]string, 0, queueCount)
	for _, q := range s.Slice() {
		out = append(out, q.String())
	}
	return out
}

func (s QueueSet) String() string {
	return strings.Join(s.Names(), ", ")
}

func (s QueueSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s QueueSet) EncodeMsgpack(enc *msgpack.Encoder) error {
	members := s.Slice()
	if err := enc.EncodeArrayLen(len(members)); err != nil {
		return err
	}
	for _, q := range members {
		if err := enc.EncodeString(q.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *QueueSet) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	var set QueueSet
	for i := 0; i < n; i++ {
		name, err := dec.DecodeString()
		if err != nil {
			return err
		}
		q, err := ParseQueueID(name)
		if err != nil {
			return err
		}
		set = set.Add(q)
	}
	*s = set
	return nil
}

// WorkItem is a generated unit of work routed to one queue.
type WorkItem struct {
	ID        uint64  `msgpack:"id"`
	Numbers   []int   `msgpack:"numbers"`
	Queue     QueueID `msgpack:"queue"`
	Timestamp float64 `msgpack:"timestamp"` // seconds since the Unix epoch
}

// CreatedAt returns the item timestamp as a time.Time.
func (w WorkItem) CreatedAt() time.Time {
	sec, frac := math.Modf(w.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Validate checks the numbers length and range and the queue identifier.
func (w WorkItem) Validate() error {
	if n := len(w.Numbers); n < MinNumbers || n > MaxNumbers {
		return fmt.Errorf("%w: %d numbers", ErrInvalidItem, n)
	}
	for _, v := range w.Numbers {
		if v < MinValue || v > MaxValue {
			return fmt.Errorf("%w: number %d out of range [%d,%d]", ErrInvalidItem, v, MinValue, MaxValue)
		}
	}
	if !w.Queue.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidItem, ErrUnknownQueue, uint8(w.Queue))
	}
	return nil
}

// Subscription is the handshake a subscriber sends on the distribution
// endpoint. It is fixed for the lifetime of the connection.
type Subscription struct {
	ClientID string   `msgpack:"client_id"`
	Queues   QueueSet `msgpack:"queues"`
}

func (s Subscription) Validate() error {
	if n := s.Queues.Len(); n == 0 || n > MaxSubscribedQueues {
		return fmt.Errorf("%w: %d queues", ErrInvalidSubscription, n)
	}
	return nil
}

// ResultRecord carries one computed result back to the broker.
type ResultRecord struct {
	ClientID       string   `msgpack:"client_id"`
	Value          int64    `msgpack:"resultado"`
	DeclaredQueues QueueSet `msgpack:"colas_suscritas"`
}

func MarshalWorkItem(w WorkItem) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&w)
}

func UnmarshalWorkItem(p []byte) (WorkItem, error) {
	var w WorkItem
	if err := msgpack.Unmarshal(p, &w); err != nil {
		return WorkItem{}, fmt.Errorf("tribroker: could not decode work item: %w", err)
	}
	if err := w.Validate(); err != nil {
		return WorkItem{}, err
	}
	return w, nil
}

func MarshalSubscription(s Subscription) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&s)
}

// UnmarshalSubscription decodes and validates a subscription. A missing
// client identifier is recorded as "unknown".
func UnmarshalSubscription(p []byte) (Subscription, error) {
	var s Subscription
	if err := msgpack.Unmarshal(p, &s); err != nil {
		return Subscription{}, fmt.Errorf("tribroker: could not decode subscription: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Subscription{}, err
	}
	if s.ClientID == "" {
		s.ClientID = unknownClient
	}
	return s, nil
}

func MarshalResultRecord(r ResultRecord) ([]byte, error) {
	return msgpack.Marshal(&r)
}

func UnmarshalResultRecord(p []byte) (ResultRecord, error) {
	var r ResultRecord
	if err := msgpack.Unmarshal(p, &r); err != nil {
		return ResultRecord{}, fmt.Errorf("tribroker: could not decode result: %w", err)
	}
	if r.ClientID == "" {
		r.ClientID = unknownClient
	}
	return r, nil
}
