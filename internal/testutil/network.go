// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil provides testing utilities for the tribroker endpoints.
package testutil

import (
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

var portCounter int64 = 20000

// nextBase hands out a fresh starting point so that parallel tests do not
// probe the same ports.
func nextBase() int {
	port := int(atomic.AddInt64(&portCounter, 7))
	if port > 65000 {
		port = 20000 + port%45000
	}
	return port
}

// GetAvailablePort returns an available TCP port for testing.
func GetAvailablePort() (int, error) {
	base := nextBase()
	for i := 0; i < 100; i++ {
		port := base + i
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports found in range")
}

// GetAvailablePortPair returns a port p such that both p and p+1 can be
// bound, as a broker needs for its distribution and ingestion endpoints.
func GetAvailablePortPair() (int, error) {
	base := nextBase()
	for i := 0; i < 200; i += 2 {
		port := base + i
		if isPortAvailable(port) && isPortAvailable(port+1) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port pairs found in range")
}

// isPortAvailable checks if a TCP port is available for binding on the
// loopback interface.
func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", Addr(port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// Addr returns the loopback address for port.
func Addr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// WaitForConnection waits until addr accepts a TCP connection.
func WaitForConnection(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}

	return fmt.Errorf("connection timeout for address %s", addr)
}

// Occupy binds addr and keeps it bound until the returned function is
// called.
func Occupy(addr string) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return func() { l.Close() }, nil
}
