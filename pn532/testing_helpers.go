// tagbox
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of tagbox.
//
// tagbox is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// tagbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tagbox; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package pn532

import (
	"context"
	"sync"
	"time"
)

// MockCall records one SendCommand invocation.
type MockCall struct {
	Args []byte
	Cmd  byte
}

// MockTransport is an in-memory Transport for tests and the virtual reader.
// Answers come from ResponseFunc when set, otherwise from per-command
// queues. A command with nothing to answer times out.
type MockTransport struct {
	ResponseFunc func(cmd byte, args []byte) ([]byte, error)
	queued       map[byte][]mockResponse
	calls        []MockCall
	timeout      time.Duration
	mu           sync.Mutex
	closed       bool
}

type mockResponse struct {
	err  error
	data []byte
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		queued:  make(map[byte][]mockResponse),
		timeout: time.Second,
	}
}

// NewMockTransportWithFunc creates a mock transport answering through fn.
func NewMockTransportWithFunc(fn func(cmd byte, args []byte) ([]byte, error)) *MockTransport {
	m := NewMockTransport()
	m.ResponseFunc = fn
	return m
}

// Queue appends an answer for cmd. Answers are consumed in order.
func (m *MockTransport) Queue(cmd byte, resp []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[cmd] = append(m.queued[cmd], mockResponse{data: resp, err: err})
}

// Calls returns a copy of the commands sent so far.
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how often cmd was sent.
func (m *MockTransport) CallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Cmd == cmd {
			n++
		}
	}
	return n
}

// SendCommand implements Transport.
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, NewTransportError("send command", "mock", ErrTransportWrite, ErrorTypePermanent)
	}
	m.calls = append(m.calls, MockCall{Cmd: cmd, Args: append([]byte(nil), args...)})
	fn := m.ResponseFunc
	var next *mockResponse
	if q := m.queued[cmd]; len(q) > 0 {
		next = &q[0]
		m.queued[cmd] = q[1:]
	}
	m.mu.Unlock()

	switch {
	case fn != nil:
		return fn(cmd, args)
	case next != nil:
		return next.data, next.err
	default:
		return nil, NewTimeoutError("send command", "mock")
	}
}

// SetTimeout implements Transport.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the configured timeout.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type implements Transport.
func (*MockTransport) Type() TransportType {
	return TransportMock
}
