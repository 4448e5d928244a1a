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

// Package i2c provides I2C transport implementation for PN532
package i2c

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/tagbox/internal/frame"
	"github.com/ZaparooProject/tagbox/internal/retry"
	"github.com/ZaparooProject/tagbox/pn532"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address.
	pn532Addr = 0x24

	// pn532Ready is the status byte that precedes every read once the
	// chip has data.
	pn532Ready = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	// Largest normal frame plus the status byte.
	maxReadLen = frame.MaxDataLength + 8

	pollInterval = time.Millisecond
	maxNacks     = 3
)

// Transport implements the pn532.Transport interface for I2C communication
type Transport struct {
	conn    conn.Conn
	closer  io.Closer
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens the named I2C bus ("" for the first one) and addresses the
// PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	t := NewWithConn(&i2c.Dev{Addr: pn532Addr, Bus: bus}, busName)
	t.closer = bus
	return t, nil
}

// NewWithConn creates a transport on an already addressed connection.
func NewWithConn(c conn.Conn, busName string) *Transport {
	return &Transport{
		conn:    c,
		busName: busName,
		timeout: 100 * time.Millisecond,
	}
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewTransportError("send command", t.busName, err, pn532.ErrorTypePermanent)
	}
	if err := t.write(f); err != nil {
		return nil, err
	}

	ack, err := t.read(ctx, len(frame.AckFrame))
	if err != nil {
		if pn532.IsTimeout(err) {
			return nil, pn532.NewNoACKError("wait ACK", t.busName)
		}
		return nil, err
	}
	if _, ok := frame.HasAck(ack); !ok {
		return nil, pn532.NewNoACKError("wait ACK", t.busName)
	}

	return t.receive(ctx)
}

// receive reads the response frame, asking the chip to resend it with a
// NACK when it arrives corrupted.
func (t *Transport) receive(ctx context.Context) ([]byte, error) {
	var lastErr error
	for range maxNacks {
		buf, err := t.read(ctx, maxReadLen)
		if err != nil {
			return nil, err
		}

		data, _, err := frame.Parse(buf)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, frame.ErrApplicationError):
			return nil, pn532.NewTransportError("receive", t.busName, err, pn532.ErrorTypePermanent)
		}

		lastErr = err
		if err := t.write(frame.NackFrame); err != nil {
			return nil, err
		}
	}
	return nil, pn532.NewFrameCorruptedError("receive", t.busName, lastErr)
}

// read polls until the chip reports ready and returns n bytes after the
// status byte.
func (t *Transport) read(ctx context.Context, n int) ([]byte, error) {
	data, err := retry.Poll(ctx, t.timeout, pollInterval, func() ([]byte, bool, error) {
		buf := make([]byte, n+1)
		if err := t.conn.Tx(nil, buf); err != nil {
			return nil, false, pn532.NewTransportError("read", t.busName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if buf[0] != pn532Ready {
			return nil, true, nil
		}
		return buf[1:], false, nil
	})
	if errors.Is(err, retry.ErrTimeout) {
		return nil, pn532.NewTimeoutError("read", t.busName)
	}
	return data, err
}

func (t *Transport) write(b []byte) error {
	if err := t.conn.Tx(b, nil); err != nil {
		return pn532.NewTransportError("write", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", pn532.ErrInvalidParameter, timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus when the transport opened it.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	if err := t.closer.Close(); err != nil {
		return fmt.Errorf("close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
