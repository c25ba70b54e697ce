// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// session is one live distribution connection.
type session struct {
	id       string
	clientID string
	remote   string
	queues   QueueSet
	since    time.Time
	sent     atomic.Uint64
}

// SessionInfo is a snapshot of a connected subscriber.
type SessionInfo struct {
	ID       string
	ClientID string
	Remote   string
	Queues   QueueSet
	Since    time.Time
	Sent     uint64
}

// Sessions lists the subscribers currently connected to the distribution
// endpoint, ordered by connection time.
func (b *Broker) Sessions() []SessionInfo {
	var out []SessionInfo
	b.sessions.ForEach(func(_ string, s *session) bool {
		out = append(out, SessionInfo{
			ID:       s.id,
			ClientID: s.clientID,
			Remote:   s.remote,
			Queues:   s.queues,
			Since:    s.since,
			Sent:     s.sent.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}

// serveDistribution reads the subscription, then streams items from the
// subscribed queues until the run ends or the subscriber goes away.
func (b *Broker) serveDistribution(ctx context.Context, conn *Conn) {
	remote := conn.RemoteAddr().String()
	log := b.log.With(slog.String("remote", remote))

	if b.handshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(b.handshakeTimeout))
	}
	payload, err := conn.ReadFrame()
	if err != nil {
		if IsDisconnect(err) {
			log.Debug("closed before subscribing", errAttr(err))
			return
		}
		log.Warn("could not read subscription", errAttr(err))
		return
	}
	sub, err := UnmarshalSubscription(payload)
	if err != nil {
		log.Warn("rejected subscription", errAttr(err))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sess := &session{
		id:       xid.New().String(),
		clientID: sub.ClientID,
		remote:   remote,
		queues:   sub.Queues,
		since:    time.Now(),
	}
	b.sessions.Set(sess.id, sess)
	b.metrics.Sessions.Inc()
	defer func() {
		b.sessions.Del(sess.id)
		b.metrics.Sessions.Dec()
	}()

	log = log.With(slog.String("client", sub.ClientID), slog.String("session", sess.id))
	log.Info("subscriber connected", queuesAttr(sub.Queues))

	reason := b.distribute(ctx, conn, sess, log)
	log.Info("subscriber finished", slog.String("reason", reason), slog.Uint64("sent", sess.sent.Load()))
}

func (b *Broker) distribute(ctx context.Context, conn *Conn, sess *session, log *slog.Logger) string {
	queues := sess.queues.Slice()
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	lastPeek := time.Now()

	for {
		if ctx.Err() != nil {
			return "shutdown"
		}

		// Visit the queues in a fresh order each pass so that a two-queue
		// subscriber does not always drain the first one.
		if len(queues) > 1 {
			rng.Shuffle(len(queues), func(i, j int) { queues[i], queues[j] = queues[j], queues[i] })
		}

		sent := false
		for _, q := range queues {
			item, ok := b.store.Pop(ctx, q, b.popTimeout)
			if !ok {
				continue
			}
			if err := b.send(conn, item); err != nil {
				if IsDisconnect(err) || ctx.Err() != nil {
					return "disconnected"
				}
				log.Warn("could not send item", slog.Uint64("item", item.ID), errAttr(err))
				return "error"
			}
			sess.sent.Add(1)
			b.dispatched.Add(1)
			b.metrics.Dispatched.WithLabelValues(q.String()).Inc()
			sent = true
			break
		}

		if !sent && b.idleSleep > 0 {
			timer := time.NewTimer(b.idleSleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "shutdown"
			case <-timer.C:
			}
		}

		if time.Since(lastPeek) >= b.peekInterval {
			lastPeek = time.Now()
			alive, err := conn.Alive()
			switch {
			case ctx.Err() != nil:
				return "shutdown"
			case err != nil && !IsDisconnect(err):
				log.Warn("liveness check failed", errAttr(err))
				return "error"
			case !alive:
				return "disconnected"
			}
		}
	}
}

func (b *Broker) send(conn *Conn, item WorkItem) error {
	payload, err := MarshalWorkItem(item)
	if err != nil {
		return err
	}
	if b.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	}
	return conn.WriteFrame(payload)
}
