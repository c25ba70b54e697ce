// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

const acceptRetry = 50 * time.Millisecond

// ErrPortInUse reports an endpoint whose address is already bound.
var ErrPortInUse = errors.New("tribroker: port already in use")

// handlerFunc serves one accepted connection. The connection is closed when
// the handler returns or ctx is done, whichever comes first.
type handlerFunc func(ctx context.Context, conn *Conn)

// endpoint owns a listening socket, its accept loop and the handlers it
// spawned.
type endpoint struct {
	name     string
	ep       string
	listener net.Listener
	log      *slog.Logger
	handle   handlerFunc

	wg sync.WaitGroup
}

func listen(ctx context.Context, name, addr string, log *slog.Logger, handle handlerFunc) (*endpoint, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("tribroker: could not listen to %q for %s: %w: %w", addr, name, ErrPortInUse, err)
		}
		return nil, fmt.Errorf("tribroker: could not listen to %q for %s: %w", addr, name, err)
	}
	return &endpoint{
		name:     name,
		ep:       addr,
		listener: l,
		log:      log.With(slog.String("endpoint", name)),
		handle:   handle,
	}, nil
}

// Addr returns the listener's address.
func (e *endpoint) Addr() net.Addr {
	return e.listener.Addr()
}

func (e *endpoint) port() int {
	if a, ok := e.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (e *endpoint) Close() error {
	err := e.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// serve runs the accept loop until ctx is done, then waits for every
// handler it started.
func (e *endpoint) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { e.listener.Close() })
	defer stop()
	defer e.wg.Wait()

	e.log.Info("listening", slog.String("addr", e.Addr().String()))
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			e.log.Warn("accept failed", errAttr(err))
			timer := time.NewTimer(acceptRetry)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}

		e.wg.Add(1)
		go e.serveConn(ctx, conn)
	}
}

func (e *endpoint) serveConn(ctx context.Context, rw net.Conn) {
	defer e.wg.Done()

	conn := NewConn(rw)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panic", slog.String("remote", rw.RemoteAddr().String()), slog.Any("panic", r))
		}
	}()

	e.handle(ctx, conn)
}
