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

// Package uart provides the high speed UART (HSU) transport for PN532
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/tagbox/internal/frame"
	"github.com/ZaparooProject/tagbox/pn532"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the PN532 HSU default speed.
	DefaultBaudRate = 115200

	readChunk   = 64
	readTimeout = 20 * time.Millisecond
)

// wakeup brings the chip out of power down. It is sent in front of the
// first command.
var wakeup = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// Port is the part of serial.Port the transport needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements the pn532.Transport interface for UART communication
type Transport struct {
	port     Port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	awake    bool
}

// New opens portName at DefaultBaudRate, 8N1.
func New(portName string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pn532.NewTransportError("open", portName, err, pn532.ErrorTypePermanent)
	}
	return NewWithPort(port, portName), nil
}

// NewWithPort creates a transport on an open port.
func NewWithPort(port Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  100 * time.Millisecond,
	}
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, pn532.NewTransportError("send command", t.portName, pn532.ErrTransportWrite, pn532.ErrorTypePermanent)
	}

	f, err := frame.Build(cmd, args)
	if err != nil {
		return nil, pn532.NewTransportError("send command", t.portName, err, pn532.ErrorTypePermanent)
	}
	if !t.awake {
		f = append(append([]byte(nil), wakeup...), f...)
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, pn532.NewTransportError("reset input", t.portName, err, pn532.ErrorTypeTransient)
	}
	if _, err := t.port.Write(f); err != nil {
		return nil, pn532.NewTransportError("write", t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	t.awake = true

	return t.receive(ctx)
}

// receive reads until the ACK and a complete response frame have arrived.
func (t *Transport) receive(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	chunk := make([]byte, readChunk)
	var buf []byte
	acked := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if !acked {
				return nil, pn532.NewNoACKError("wait ACK", t.portName)
			}
			return nil, pn532.NewTimeoutError("receive", t.portName)
		}
		if err := t.port.SetReadTimeout(min(remaining, readTimeout)); err != nil {
			return nil, pn532.NewTransportError("set read timeout", t.portName, err, pn532.ErrorTypePermanent)
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return nil, pn532.NewTransportError("read", t.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)

		if !acked {
			rest, ok := frame.HasAck(buf)
			if !ok {
				continue
			}
			acked = true
			buf = rest
		}

		data, _, err := frame.Parse(buf)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, frame.ErrIncomplete):
			continue
		case errors.Is(err, frame.ErrApplicationError):
			return nil, pn532.NewTransportError("receive", t.portName, err, pn532.ErrorTypePermanent)
		default:
			return nil, pn532.NewFrameCorruptedError("receive", t.portName, err)
		}
	}
}

// SetTimeout sets the response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", pn532.ErrInvalidParameter, timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", t.portName, err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// Ensure Transport implements pn532.Transport
var _ pn532.Transport = (*Transport)(nil)
