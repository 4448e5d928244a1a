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

package i2c

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/tagbox/internal/frame"
	"github.com/ZaparooProject/tagbox/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
)

// fakeConn answers reads from a script. Each read gets the next entry,
// zero padded to the requested length.
type fakeConn struct {
	readErr error
	writes  [][]byte
	reads   [][]byte
	mu      sync.Mutex
}

func (*fakeConn) String() string { return "fake" }

func (*fakeConn) Duplex() conn.Duplex { return conn.Half }

func (f *fakeConn) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w != nil {
		f.writes = append(f.writes, append([]byte(nil), w...))
	}
	if r == nil {
		return nil
	}
	if f.readErr != nil {
		return f.readErr
	}
	clear(r)
	if len(f.reads) > 0 {
		copy(r, f.reads[0])
		f.reads = f.reads[1:]
	}
	return nil
}

func ready(b []byte) []byte {
	return append([]byte{pn532Ready}, b...)
}

func responseFrame(data ...byte) []byte {
	out := []byte{0x00, 0x00, 0xFF, byte(len(data) + 1), frame.CalculateLengthChecksum(byte(len(data) + 1)), frame.Pn532ToHost}
	out = append(out, data...)
	return append(out, frame.CalculateDataChecksum(frame.Pn532ToHost, data), 0x00)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{reads: [][]byte{
		{0x00},
		ready(frame.AckFrame),
		{0x00},
		ready(responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)),
	}}
	tr := NewWithConn(fc, "test")

	resp, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, resp)

	want, err := frame.Build(0x02, nil)
	require.NoError(t, err)
	require.Len(t, fc.writes, 1)
	assert.Equal(t, want, fc.writes[0])
}

func TestSendCommandNacksCorruptFrame(t *testing.T) {
	t.Parallel()

	corrupt := responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)
	corrupt[7]++
	fc := &fakeConn{reads: [][]byte{
		ready(frame.AckFrame),
		ready(corrupt),
		ready(responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)),
	}}
	tr := NewWithConn(fc, "test")

	resp, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), resp[0])
	require.Len(t, fc.writes, 2)
	assert.Equal(t, frame.NackFrame, fc.writes[1])
}

func TestSendCommandErrors(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus error")
	corrupt := responseFrame(0x03)
	corrupt[6]++

	tests := []struct {
		check func(t *testing.T, err error)
		conn  *fakeConn
		name  string
	}{
		{
			name: "no ACK",
			conn: &fakeConn{},
			check: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, pn532.ErrNoACK)
				assert.True(t, pn532.IsRetryable(err))
			},
		},
		{
			name: "no response",
			conn: &fakeConn{reads: [][]byte{ready(frame.AckFrame)}},
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, pn532.IsTimeout(err))
			},
		},
		{
			name: "application error frame",
			conn: &fakeConn{reads: [][]byte{
				ready(frame.AckFrame),
				ready([]byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}),
			}},
			check: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, frame.ErrApplicationError)
				assert.False(t, pn532.IsRetryable(err))
			},
		},
		{
			name: "persistent corruption",
			conn: &fakeConn{reads: [][]byte{ready(frame.AckFrame), ready(corrupt), ready(corrupt), ready(corrupt)}},
			check: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, pn532.ErrFrameCorrupted)
				assert.True(t, pn532.IsRetryable(err))
			},
		},
		{
			name: "bus failure",
			conn: &fakeConn{readErr: errBus},
			check: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, errBus)
				require.ErrorIs(t, err, pn532.ErrTransportRead)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := NewWithConn(tt.conn, "test")
			require.NoError(t, tr.SetTimeout(10*time.Millisecond))
			_, err := tr.SendCommand(context.Background(), 0x02, nil)
			tt.check(t, err)
		})
	}
}

func TestSendCommandCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := &fakeConn{}
	_, err := NewWithConn(fc, "test").SendCommand(ctx, 0x02, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fc.writes)
}

func TestTransportProperties(t *testing.T) {
	t.Parallel()

	tr := NewWithConn(&fakeConn{}, "test")
	assert.Equal(t, pn532.TransportI2C, tr.Type())
	require.ErrorIs(t, tr.SetTimeout(0), pn532.ErrInvalidParameter)
	require.NoError(t, tr.Close())
}
