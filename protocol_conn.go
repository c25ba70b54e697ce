// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tribroker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// MaxFrameSize is the largest payload ReadFrame accepts.
const MaxFrameSize = 16 << 20

const frameHeaderSize = 4

var (
	// ErrShortRead reports a peer that closed before the declared payload
	// length was fully received.
	ErrShortRead = errors.New("tribroker: short read")

	// ErrMalformedLength reports a frame whose 4-byte length prefix could not
	// be read in full, or declares a payload larger than MaxFrameSize.
	ErrMalformedLength = errors.New("tribroker: malformed frame length")

	ErrClosedConn = errors.New("tribroker: read/write on closed connection")
)

// WriteFrame writes payload to w as a single frame:
// a 4-byte big-endian length followed by the payload bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("tribroker: frame payload too large: %d bytes", len(payload))
	}
	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	buffers := net.Buffers{hdr[:], payload}
	_, err := buffers.WriteTo(w)
	return err
}

// ReadFrame reads a single frame from r and returns its payload.
//
// A peer closing before 4 length bytes arrive yields ErrMalformedLength;
// if no byte at all was read the error also matches io.EOF, which marks a
// clean close on a frame boundary. A peer closing in the middle of the
// payload yields ErrShortRead.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: %w", ErrMalformedLength, err)
		default:
			return nil, err
		}
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMalformedLength, size, MaxFrameSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: want %d bytes: %w", ErrShortRead, size, err)
		default:
			return nil, err
		}
	}
	return payload, nil
}

// IsDisconnect reports whether err describes a peer going away (clean close,
// truncated frame, reset or closed local socket) rather than a protocol fault.
func IsDisconnect(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, ErrShortRead),
		errors.Is(err, ErrClosedConn),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

// Conn is a framed connection. Frame writes are serialized so that two
// goroutines sharing a Conn never interleave their bytes on the wire.
type Conn struct {
	rw net.Conn

	wmu    sync.Mutex
	rmu    sync.Mutex
	closed int32
	once   sync.Once
}

// NewConn wraps rw.
func NewConn(rw net.Conn) *Conn {
	return &Conn{rw: rw}
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		atomic.StoreInt32(&c.closed, 1)
		err = c.rw.Close()
	})
	return err
}

// Closed reports whether Close was called or an I/O error marked the
// connection as dead.
func (c *Conn) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// WriteFrame sends payload as one frame.
func (c *Conn) WriteFrame(payload []byte) error {
	if c.Closed() {
		return ErrClosedConn
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	err := WriteFrame(c.rw, payload)
	c.checkIO(err)
	return err
}

// ReadFrame receives one frame.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.Closed() {
		return nil, ErrClosedConn
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()

	payload, err := ReadFrame(c.rw)
	c.checkIO(err)
	return payload, err
}

func (c *Conn) SetReadDeadline(t time.Time) error  { return c.rw.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.rw.SetWriteDeadline(t) }

func (c *Conn) RemoteAddr() net.Addr { return c.rw.RemoteAddr() }

// Alive peeks at the socket without consuming data and reports whether the
// peer is still connected. Transports that cannot be peeked are assumed alive.
func (c *Conn) Alive() (bool, error) {
	if c.Closed() {
		return false, ErrClosedConn
	}
	return peekAlive(c.rw)
}

func (c *Conn) checkIO(err error) {
	if err == nil {
		return
	}

	if errors.Is(err, io.EOF) || errors.Is(err, ErrShortRead) {
		atomic.StoreInt32(&c.closed, 1)
		return
	}

	var e net.Error
	if errors.As(err, &e) && !e.Timeout() {
		atomic.StoreInt32(&c.closed, 1)
	}
}
