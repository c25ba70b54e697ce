// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tribroker implements a three-queue publish/subscribe broker.
//
// A single generator produces small numeric work items and routes each one
// to the principal, secundaria or terciaria queue under a routing policy.
// Subscribers connect to the distribution endpoint, declare one or two
// queues and receive items from them; they return one result per item to
// the ingestion endpoint (distribution port + 1). The broker stops once the
// configured number of results has been received and produces a Report.
//
// Every message on both endpoints is a frame: a 4-byte big-endian length
// followed by a MessagePack payload.
package tribroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBrokerRunning    = errors.New("tribroker: broker already started")
	ErrBrokerNotStarted = errors.New("tribroker: broker not started")
)

// Broker wires the generator, the queue store, both network endpoints and
// the aggregation state together.
type Broker struct {
	// Configuration
	policyName       string
	host             string
	port             int
	target           int
	log              *slog.Logger
	popTimeout       time.Duration
	idleSleep        time.Duration
	peekInterval     time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	grace            time.Duration
	yieldEvery       int
	yieldPause       time.Duration
	progressEvery    int
	seed             *[2]uint64
	registerer       prometheus.Registerer

	// Components
	router   *Router
	store    *QueueStore
	state    *AggregationState
	gen      *Generator
	metrics  *Metrics
	sessions *haxmap.Map[string, *session]

	dispatched atomic.Uint64

	mu        sync.Mutex
	started   bool
	dist      *endpoint
	ingest    *endpoint
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	startedAt time.Time
}

// NewBroker creates a broker. An unknown policy name fails here with
// ErrUnknownPolicy.
func NewBroker(opts ...Option) (*Broker, error) {
	b := &Broker{
		policyName:       DefaultPolicy,
		host:             DefaultHost,
		port:             DefaultPort,
		target:           DefaultTarget,
		popTimeout:       defaultPopTimeout,
		idleSleep:        defaultIdleSleep,
		peekInterval:     defaultPeekInterval,
		writeTimeout:     defaultWriteTimeout,
		handshakeTimeout: defaultHandshakeTimeout,
		grace:            defaultGracePeriod,
		yieldEvery:       defaultYieldEvery,
		yieldPause:       defaultYieldPause,
		progressEvery:    defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = DefaultLogger
	}
	if b.target <= 0 {
		return nil, fmt.Errorf("tribroker: invalid target %d", b.target)
	}
	if b.port < 0 || b.port > 65534 {
		return nil, fmt.Errorf("tribroker: invalid port %d", b.port)
	}

	var routerRNG, genRNG *rand.Rand
	if b.seed != nil {
		routerRNG = rand.New(rand.NewPCG(b.seed[0], b.seed[1]))
		genRNG = rand.New(rand.NewPCG(b.seed[1], b.seed[0]))
	}

	router, err := NewRouter(b.policyName, routerRNG)
	if err != nil {
		return nil, err
	}
	b.router = router
	b.store = NewQueueStore()
	b.state = NewAggregationState(b.target)
	b.gen = NewGenerator(b.store, router, genRNG, b.yieldEvery, b.yieldPause)
	b.sessions = haxmap.New[string, *session]()

	if b.registerer == nil {
		b.registerer = prometheus.NewRegistry()
	}
	b.metrics, err = NewMetrics(b.registerer, b.store.Len)
	if err != nil {
		return nil, fmt.Errorf("tribroker: could not register metrics: %w", err)
	}
	b.gen.onItem = func(item WorkItem) {
		b.metrics.Generated.WithLabelValues(item.Queue.String()).Inc()
	}

	return b, nil
}

// Policy returns the routing policy in use.
func (b *Broker) Policy() Policy { return b.router.Policy() }

// State returns the aggregation state shared by the ingestion handlers.
func (b *Broker) State() *AggregationState { return b.state }

// Store returns the queue store fed by the generator.
func (b *Broker) Store() *QueueStore { return b.store }

func (b *Broker) Metrics() *Metrics { return b.metrics }

// Start binds both endpoints and launches the generator and the two accept
// loops. If either port cannot be bound nothing is left running and the
// returned error wraps ErrPortInUse when the address was taken.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrBrokerRunning
	}

	dist, err := listen(ctx, "distribution", net.JoinHostPort(b.host, strconv.Itoa(b.port)), b.log, b.serveDistribution)
	if err != nil {
		b.log.Error("could not start distribution endpoint", errAttr(err))
		return err
	}
	ingestAddr := net.JoinHostPort(b.host, strconv.Itoa(dist.port()+1))
	ingest, err := listen(ctx, "ingestion", ingestAddr, b.log, b.serveIngestion)
	if err != nil {
		dist.Close()
		b.log.Error("could not start ingestion endpoint", errAttr(err))
		return err
	}

	b.dist = dist
	b.ingest = ingest
	b.started = true
	b.startedAt = time.Now()
	b.ctx, b.cancel = context.WithCancel(ctx)

	g, gctx := errgroup.WithContext(b.ctx)
	g.Go(func() error { return b.gen.Run(gctx) })
	g.Go(func() error { return dist.serve(gctx) })
	g.Go(func() error { return ingest.serve(gctx) })
	g.Go(func() error {
		select {
		case <-b.state.Done():
		case <-gctx.Done():
		}
		b.cancel()
		return nil
	})
	b.group = g

	b.log.Info("broker started",
		slog.String("policy", b.router.Policy().String()),
		slog.Int("target", b.target),
		slog.String("distribution", dist.Addr().String()),
		slog.String("ingestion", ingest.Addr().String()),
	)
	return nil
}

// Addr returns the distribution endpoint address, or nil before Start.
func (b *Broker) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dist == nil {
		return nil
	}
	return b.dist.Addr()
}

// ResultAddr returns the ingestion endpoint address, or nil before Start.
func (b *Broker) ResultAddr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ingest == nil {
		return nil
	}
	return b.ingest.Addr()
}

// Stop ends the run as an interrupt would. Wait still returns the report.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// Wait blocks until the target is reached or the context given to Start is
// cancelled, lets the goroutines wind down for at most the grace period and
// returns the final report.
func (b *Broker) Wait() (*Report, error) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil, ErrBrokerNotStarted
	}
	ctx, group := b.ctx, b.group
	b.mu.Unlock()

	<-ctx.Done()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	var err error
	timer := time.NewTimer(b.grace)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		b.log.Warn("grace period expired before shutdown completed", slog.Duration("grace", b.grace))
	}

	report := b.report()
	b.log.Info("broker stopped", slog.String("reason", string(report.Reason)), slog.Int("total", report.Total))
	return report, err
}

// Run starts the broker and waits for the run to end.
func (b *Broker) Run(ctx context.Context) (*Report, error) {
	if err := b.Start(ctx); err != nil {
		return nil, err
	}
	return b.Wait()
}

func (b *Broker) report() *Report {
	snap := b.state.Snapshot()
	reason := StopTargetReached
	if snap.Running {
		reason = StopInterrupted
	}

	pending := make(map[string]int, queueCount)
	for q, n := range b.store.Depths() {
		pending[q.String()] = n
	}

	return &Report{
		Policy:     b.router.Policy().String(),
		Target:     snap.Target,
		Total:      snap.Total,
		Sum:        snap.Sum,
		Dropped:    snap.Dropped,
		Generated:  b.gen.Generated(),
		Dispatched: b.dispatched.Load(),
		Pending:    pending,
		Clients:    snap.Clients,
		Elapsed:    time.Since(b.startedAt),
		Reason:     reason,
	}
}
