// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// TCPConn is a TCP serial bridge. With a read timeout set, Read returns a
// net.Error whose Timeout() is true when no data arrives in time.
type TCPConn struct {
	conn        net.Conn
	readTimeout atomic.Int64
}

func (t *TCPConn) Read(p []byte) (int, error) {
	if d := time.Duration(t.readTimeout.Load()); d > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	return t.conn.Read(p)
}

func (t *TCPConn) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPConn) Close() error {
	return t.conn.Close()
}

// SetReadTimeout bounds each Read; 0 disables the bound
func (t *TCPConn) SetReadTimeout(d time.Duration) error {
	t.readTimeout.Store(int64(d))
	return nil
}

// OpenTCP dials a TCP serial bridge at address (host:port)
func OpenTCP(address string, timeout time.Duration) (*TCPConn, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(KeepAlivePeriod)
		tc.SetNoDelay(true)
	}

	return &TCPConn{conn: conn}, nil
}
