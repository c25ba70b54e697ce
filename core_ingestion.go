// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"log/slog"
)

// serveIngestion reads result frames until the peer closes, the payload is
// malformed or the run ends. Subscribers may keep one connection open for
// all their results or open one per result.
func (b *Broker) serveIngestion(ctx context.Context, conn *Conn) {
	log := b.log.With(slog.String("remote", conn.RemoteAddr().String()))

	for ctx.Err() == nil {
		payload, err := conn.ReadFrame()
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case IsDisconnect(err):
				log.Debug("result connection closed", errAttr(err))
			default:
				log.Warn("could not read result", errAttr(err))
			}
			return
		}

		rec, err := UnmarshalResultRecord(payload)
		if err != nil {
			log.Warn("malformed result", errAttr(err))
			return
		}
		b.apply(rec, log)
	}
}

func (b *Broker) apply(rec ResultRecord, log *slog.Logger) {
	total, res := b.state.Apply(rec)
	if res == Dropped {
		b.metrics.Dropped.Inc()
		return
	}
	b.metrics.Applied.Inc()

	if b.progressEvery > 0 && total%b.progressEvery == 0 {
		log.Info("results received", slog.Int("total", total), slog.Int("target", b.state.Target()))
	}
	if res == TargetReached {
		log.Info("target reached", slog.Int("total", total), slog.String("client", rec.ClientID))
	}
}
