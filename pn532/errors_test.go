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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport timeout retryable", err: ErrTransportTimeout, want: true},
		{name: "transport read retryable", err: ErrTransportRead, want: true},
		{name: "transport write retryable", err: ErrTransportWrite, want: true},
		{name: "no ACK retryable", err: ErrNoACK, want: true},
		{name: "frame corrupted retryable", err: ErrFrameCorrupted, want: true},
		{name: "not ready retryable", err: ErrNotReady, want: true},
		{name: "data too large not retryable", err: ErrDataTooLarge, want: false},
		{name: "invalid parameter not retryable", err: ErrInvalidParameter, want: false},
		{name: "auth failure not retryable", err: ErrAuthFailed, want: false},
		{name: "wrapped sentinel retryable", err: fmt.Errorf("outer: %w", ErrTransportTimeout), want: true},
		{name: "string copy not retryable", err: errors.New("outer: " + ErrTransportTimeout.Error()), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsRetryableTransportError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transport *TransportError
		name      string
		want      bool
	}{
		{
			name: "transient error",
			transport: &TransportError{
				Err: errors.New("test error"), Op: "read", Port: "/dev/ttyUSB0",
				Type: ErrorTypeTransient, Retryable: true,
			},
			want: true,
		},
		{
			name: "flag overrides type",
			transport: &TransportError{
				Err: errors.New("test error"), Op: "write", Port: "/dev/ttyUSB0",
				Type: ErrorTypeTransient, Retryable: false,
			},
			want: false,
		},
		{
			name: "flag overrides retryable cause",
			transport: &TransportError{
				Err: ErrTransportTimeout, Op: "read", Port: "/dev/ttyUSB0",
				Type: ErrorTypeTimeout, Retryable: false,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.transport))
		})
	}
}

func TestTransportErrorConstructors(t *testing.T) {
	t.Parallel()

	timeout := NewTimeoutError("read", "/dev/ttyUSB0")
	assert.True(t, IsTimeout(timeout))
	assert.True(t, IsRetryable(timeout))
	assert.ErrorIs(t, timeout, ErrTransportTimeout)
	assert.Equal(t, "read on /dev/ttyUSB0: transport timeout", timeout.Error())

	noAck := NewNoACKError("send command", "")
	assert.False(t, IsTimeout(noAck))
	assert.True(t, IsRetryable(noAck))
	assert.Equal(t, "send command: no ACK received", noAck.Error())

	corrupted := NewFrameCorruptedError("read", "i2c-1", nil)
	assert.ErrorIs(t, corrupted, ErrFrameCorrupted)
	assert.True(t, IsRetryable(corrupted))

	permanent := NewTransportError("open", "/dev/ttyUSB9", errors.New("no such device"), ErrorTypePermanent)
	assert.False(t, IsRetryable(permanent))
	assert.False(t, IsTimeout(permanent))
}
