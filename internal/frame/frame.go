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

// Package frame builds and parses PN532 normal information frames.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame identifiers (TFI).
const (
	HostToPn532 = 0xD4
	Pn532ToHost = 0xD5
	ErrorFrame  = 0x7F
)

// Frame markers.
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// MaxDataLength is the largest TFI+PD payload of a normal frame.
const MaxDataLength = 254

// ACK and NACK flow-control frames.
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)

var (
	// ErrIncomplete means more bytes are needed to complete the frame.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrFrameCorrupted means a length or data checksum did not verify.
	ErrFrameCorrupted = errors.New("frame corrupted")
	// ErrApplicationError is the PN532 syntax error frame.
	ErrApplicationError = errors.New("PN532 application error frame")
	// ErrDataTooLarge means the command does not fit in a normal frame.
	ErrDataTooLarge = errors.New("data too large for normal frame")
)

// CalculateChecksum returns the 8-bit sum of data.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ChecksumOK reports whether data including its checksum byte sums to zero.
func ChecksumOK(data []byte) bool {
	return CalculateChecksum(data) == 0
}

// CalculateDataChecksum returns the DCS for a frame with the given TFI.
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS for length.
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// Build returns a host-to-PN532 frame for cmd with args.
func Build(cmd byte, args []byte) ([]byte, error) {
	n := 2 + len(args)
	if n > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, n)
	}
	body := make([]byte, 0, n)
	body = append(body, cmd)
	body = append(body, args...)

	out := make([]byte, 0, n+7)
	out = append(out, Preamble, StartCode1, StartCode2, byte(n), CalculateLengthChecksum(byte(n)), HostToPn532)
	out = append(out, body...)
	return append(out, CalculateDataChecksum(HostToPn532, body), Postamble), nil
}

// Parse extracts the first information frame from buf. ACK frames in front
// of it are skipped. It returns the payload after the TFI (starting with
// the response code) and the number of bytes consumed.
//
// ErrIncomplete means buf holds a valid prefix and the caller should read
// more; other errors mean the frame cannot be recovered.
func Parse(buf []byte) (data []byte, consumed int, err error) {
	off := 0
	for {
		i := bytes.Index(buf[off:], []byte{StartCode1, StartCode2})
		if i < 0 {
			return nil, 0, ErrIncomplete
		}
		start := off + i + 2
		if start+2 > len(buf) {
			return nil, 0, ErrIncomplete
		}
		length, lcs := buf[start], buf[start+1]

		switch {
		case length == 0x00 && lcs == 0xFF:
			off = start + 2
			continue
		case length == 0xFF && lcs == 0x00:
			return nil, 0, fmt.Errorf("%w: NACK or extended frame", ErrFrameCorrupted)
		case length+lcs != 0:
			return nil, 0, fmt.Errorf("%w: length checksum", ErrFrameCorrupted)
		case length == 0:
			return nil, 0, fmt.Errorf("%w: empty frame", ErrFrameCorrupted)
		}

		body := start + 2
		end := body + int(length)
		if end+1 > len(buf) {
			return nil, 0, ErrIncomplete
		}
		if !ChecksumOK(buf[body : end+1]) {
			return nil, 0, fmt.Errorf("%w: data checksum", ErrFrameCorrupted)
		}

		consumed = end + 1
		if consumed < len(buf) && buf[consumed] == Postamble {
			consumed++
		}

		switch buf[body] {
		case Pn532ToHost:
			out := make([]byte, end-body-1)
			copy(out, buf[body+1:end])
			return out, consumed, nil
		case ErrorFrame:
			return nil, consumed, ErrApplicationError
		default:
			return nil, consumed, fmt.Errorf("%w: unexpected TFI 0x%02X", ErrFrameCorrupted, buf[body])
		}
	}
}

// HasAck reports whether buf contains an ACK frame and returns the bytes
// that follow it.
func HasAck(buf []byte) ([]byte, bool) {
	// The leading preamble is optional on the wire.
	ack := AckFrame[1:]
	i := bytes.Index(buf, ack)
	if i < 0 {
		return nil, false
	}
	return buf[i+len(ack):], true
}
