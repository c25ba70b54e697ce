// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultHost   = "localhost"
	DefaultPort   = 8888
	DefaultTarget = 1_000_000
	DefaultPolicy = "random"

	defaultPopTimeout       = 100 * time.Millisecond
	defaultIdleSleep        = 10 * time.Millisecond
	defaultPeekInterval     = 100 * time.Millisecond
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	defaultGracePeriod      = 2 * time.Second
	defaultYieldEvery       = 1000
	defaultYieldPause       = 10 * time.Millisecond
	defaultProgressEvery    = 10_000
)

// Option configures some aspect of a Broker.
type Option func(b *Broker)

// WithPolicy selects the routing policy by name (random, weighted,
// conditional or their Spanish aliases).
func WithPolicy(name string) Option {
	return func(b *Broker) {
		b.policyName = name
	}
}

// WithHost sets the interface both endpoints bind to.
func WithHost(host string) Option {
	return func(b *Broker) {
		b.host = host
	}
}

// WithPort sets the distribution port. The ingestion endpoint always
// listens on port+1.
func WithPort(port int) Option {
	return func(b *Broker) {
		b.port = port
	}
}

// WithTarget sets the number of results after which the broker stops.
func WithTarget(n int) Option {
	return func(b *Broker) {
		b.target = n
	}
}

// WithLogger sets a dedicated logger for the broker.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		b.log = l
	}
}

// WithPopTimeout bounds how long a distribution handler waits on one queue.
func WithPopTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.popTimeout = d
	}
}

// WithIdleSleep sets the pause after a pass over all subscribed queues
// found nothing.
func WithIdleSleep(d time.Duration) Option {
	return func(b *Broker) {
		b.idleSleep = d
	}
}

// WithPeekInterval sets how often a distribution handler checks whether its
// subscriber is still connected.
func WithPeekInterval(d time.Duration) Option {
	return func(b *Broker) {
		b.peekInterval = d
	}
}

// WithWriteTimeout bounds a single frame write to a subscriber.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.writeTimeout = d
	}
}

// WithHandshakeTimeout bounds how long a new distribution connection may
// take to send its subscription.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.handshakeTimeout = d
	}
}

// WithGracePeriod bounds how long Wait lets goroutines wind down after the
// run ends.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Broker) {
		b.grace = d
	}
}

// WithGeneratorYield makes the generator pause for pause after every
// every items. Zero disables the pause.
func WithGeneratorYield(every int, pause time.Duration) Option {
	return func(b *Broker) {
		b.yieldEvery = every
		b.yieldPause = pause
	}
}

// WithSeed makes the generator and the routing policy deterministic.
func WithSeed(seed1, seed2 uint64) Option {
	return func(b *Broker) {
		b.seed = &[2]uint64{seed1, seed2}
	}
}

// WithMetrics registers the broker collectors on reg instead of a private
// registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *Broker) {
		b.registerer = reg
	}
}

// WithProgressEvery logs progress every n applied results. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(b *Broker) {
		b.progressEvery = n
	}
}
