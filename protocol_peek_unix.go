// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package tribroker

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekAlive looks at the next pending byte of rw with MSG_PEEK|MSG_DONTWAIT.
// An orderly shutdown shows up as a zero-length read, a reset as ECONNRESET.
func peekAlive(rw net.Conn) (bool, error) {
	sc, ok := rw.(syscall.Conn)
	if !ok {
		return true, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, err
	}

	var (
		n    int
		perr error
		buf  [1]byte
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, perr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return false, err
	}

	switch {
	case perr == nil && n == 0:
		return false, nil
	case errors.Is(perr, unix.EAGAIN), errors.Is(perr, unix.EWOULDBLOCK), errors.Is(perr, unix.EINTR):
		return true, nil
	case perr != nil:
		return false, perr
	}
	return true, nil
}
