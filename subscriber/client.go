// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package subscriber implements the client side of the tribroker protocol:
// it subscribes to one or two queues, processes every work item it receives
// and returns one result per item.
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/destiny/tribroker"
	"github.com/google/uuid"
)

const (
	defaultRetry       = 250 * time.Millisecond
	defaultMaxRetries  = 10
	defaultDialTimeout = 5 * time.Second
)

// Processor turns the numbers of a work item into a result.
type Processor func(numbers []int) int64

// SquareOfSum squares the sum of numbers.
func SquareOfSum(numbers []int) int64 {
	var sum int64
	for _, n := range numbers {
		sum += int64(n)
	}
	return sum * sum
}

// RandomQueues picks one queue with probability 1/2, otherwise two distinct
// queues, uniformly among the three.
func RandomQueues(r *rand.Rand) tribroker.QueueSet {
	perm := r.Perm(len(tribroker.Queues))
	if r.Float64() < 0.5 {
		return tribroker.NewQueueSet(tribroker.Queues[perm[0]])
	}
	return tribroker.NewQueueSet(tribroker.Queues[perm[0]], tribroker.Queues[perm[1]])
}

// Client is a subscriber.
type Client struct {
	id         string
	queues     tribroker.QueueSet
	host       string
	port       int
	proc       Processor
	log        *slog.Logger
	dialer     net.Dialer
	retry      time.Duration
	maxRetries int

	processed atomic.Uint64
	sum       atomic.Int64
}

// Option configures some aspect of a Client.
type Option func(c *Client)

// WithAddress sets the broker host and distribution port. Results go to
// port+1.
func WithAddress(host string, port int) Option {
	return func(c *Client) {
		c.host = host
		c.port = port
	}
}

// WithProcessor replaces SquareOfSum.
func WithProcessor(p Processor) Option {
	return func(c *Client) {
		c.proc = p
	}
}

// WithLogger sets a dedicated logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithDialTimeout sets the maximum amount of time a dial will wait
// for a connect to complete.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialer.Timeout = d
	}
}

// WithDialRetry configures the wait between failed dial attempts and how
// many retries follow the first attempt (-1 means retry forever).
func WithDialRetry(retry time.Duration, maxRetries int) Option {
	return func(c *Client) {
		c.retry = retry
		c.maxRetries = maxRetries
	}
}

// New creates a subscriber for queues. An empty id is replaced by a random
// UUID.
func New(id string, queues tribroker.QueueSet, opts ...Option) (*Client, error) {
	if id == "" {
		id = uuid.NewString()
	}
	c := &Client{
		id:         id,
		queues:     queues,
		host:       tribroker.DefaultHost,
		port:       tribroker.DefaultPort,
		proc:       SquareOfSum,
		dialer:     net.Dialer{Timeout: defaultDialTimeout},
		retry:      defaultRetry,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = tribroker.DefaultLogger
	}
	c.log = c.log.With(slog.String("client", c.id))

	sub := tribroker.Subscription{ClientID: c.id, Queues: c.queues}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ID() string { return c.id }
func (c *Client) Queues() tribroker.QueueSet { return c.queues }
func (c *Client) Processed() uint64 { return c.processed.Load() }
func (c *Client) Sum() int64 { return c.sum.Load() }

// Run connects to both endpoints, subscribes and processes items until the
// broker closes the stream (nil) or ctx is cancelled (nil). Dial and
// protocol failures are returned.
func (c *Client) Run(ctx context.Context) error {
	dist, err := c.dial(ctx, c.port)
	if err != nil {
		return err
	}
	defer dist.Close()

	results, err := c.dial(ctx, c.port+1)
	if err != nil {
		return err
	}
	defer results.Close()

	stop := context.AfterFunc(ctx, func() {
		dist.Close()
		results.Close()
	})
	defer stop()

	payload, err := tribroker.MarshalSubscription(tribroker.Subscription{ClientID: c.id, Queues: c.queues})
	if err != nil {
		return err
	}
	if err := dist.WriteFrame(payload); err != nil {
		return fmt.Errorf("subscriber: could not send subscription: %w", err)
	}
	c.log.Info("subscribed", slog.Any("queues", c.queues.Names()))

	err = c.loop(dist, results)
	c.log.Info("finished", slog.Uint64("processed", c.Processed()))
	if ctx.Err() != nil || tribroker.IsDisconnect(err) {
		return nil
	}
	return err
}

func (c *Client) loop(dist, results *tribroker.Conn) error {
	for {
		payload, err := dist.ReadFrame()
		if err != nil {
			return err
		}
		item, err := tribroker.UnmarshalWorkItem(payload)
		if err != nil {
			return err
		}

		rec := tribroker.ResultRecord{
			ClientID:       c.id,
			Value:          c.proc(item.Numbers),
			DeclaredQueues: c.queues,
		}
		out, err := tribroker.MarshalResultRecord(rec)
		if err != nil {
			return err
		}
		if err := results.WriteFrame(out); err != nil {
			return err
		}

		n := c.processed.Add(1)
		c.sum.Add(rec.Value)
		if n%1000 == 0 {
			c.log.Debug("progress", slog.Uint64("processed", n))
		}
	}
}

func (c *Client) dial(ctx context.Context, port int) (*tribroker.Conn, error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(port))

	var bo backoff.BackOff = backoff.NewConstantBackOff(c.retry)
	if c.maxRetries >= 0 {
		bo = backoff.WithMaxRetries(bo, uint64(c.maxRetries))
	}

	var conn net.Conn
	err := backoff.Retry(func() error {
		var err error
		conn, err = c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("subscriber: could not dial %q (retry=%v): %w", addr, c.retry, err)
	}
	return tribroker.NewConn(conn), nil
}
