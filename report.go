// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"bytes"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StopReason tells why a run ended.
type StopReason string

const (
	StopTargetReached StopReason = "target reached"
	StopInterrupted   StopReason = "interrupted"
)

// Report is the final artifact of a run. It is produced once, after
// shutdown.
type Report struct {
	Policy     string          `json:"policy"`
	Target     int             `json:"target"`
	Total      int             `json:"total"`
	Sum        int64           `json:"sum"`
	Dropped    int             `json:"dropped"`
	Generated  uint64          `json:"generated"`
	Dispatched uint64          `json:"dispatched"`
	Pending    map[string]int  `json:"pending"`
	Clients    []ClientSummary `json:"clients"`
	Elapsed    time.Duration   `json:"elapsed"`
	Reason     StopReason      `json:"reason"`
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteTo prints the report in human-readable form with grouped digits.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var (
		buf  bytes.Buffer
		p    = message.NewPrinter(language.English)
		rule = strings.Repeat("=", 80)
	)

	p.Fprintf(&buf, "\n%s\n", rule)
	p.Fprintf(&buf, "BROKER FINAL REPORT (%s)\n", r.Reason)
	p.Fprintf(&buf, "%s\n", rule)
	p.Fprintf(&buf, "\nPolicy: %s\n", r.Policy)
	p.Fprintf(&buf, "Results received: %d / %d\n", r.Total, r.Target)
	p.Fprintf(&buf, "Sum of results: %d\n", r.Sum)
	if r.Dropped > 0 {
		p.Fprintf(&buf, "Results dropped after target: %d\n", r.Dropped)
	}
	p.Fprintf(&buf, "Items generated: %d, dispatched: %d\n", r.Generated, r.Dispatched)
	for _, q := range Queues {
		p.Fprintf(&buf, "  pending in %s: %d\n", q, r.Pending[q.String()])
	}
	p.Fprintf(&buf, "Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))

	p.Fprintf(&buf, "\nUnique clients: %d\n", len(r.Clients))
	p.Fprintf(&buf, "\nClients and their subscriptions:\n%s\n", strings.Repeat("-", 80))
	for _, c := range r.Clients {
		p.Fprintf(&buf, "Client %s:\n", c.ID)
		p.Fprintf(&buf, "  - Subscribed queues: %s\n", c.Queues)
		p.Fprintf(&buf, "  - Results processed: %d\n", c.Results)
	}
	p.Fprintf(&buf, "%s\n", rule)

	return buf.WriteTo(w)
}
