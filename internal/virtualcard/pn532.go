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

package virtualcard

import (
	"bytes"
	"fmt"
)

// PN532 status codes used in InDataExchange answers.
const (
	statusOK        = 0x00
	statusTimeout   = 0x01
	statusAuthError = 0x14
)

// SetKeyA replaces key A in the trailer of sector.
func (c *Card) SetKeyA(sector int, key [6]byte) {
	copy(c.Memory[trailer(sector)][:6], key[:])
}

func (c *Card) keyA(sector int) []byte {
	return c.Memory[trailer(sector)][:6]
}

// Respond answers a PN532 command the way the chip would with the
// simulated card in its field. The answer starts with the response code.
// Glitch and Fault apply to InListPassiveTarget: a glitch lists no target
// and a fault lists one with a corrupt UID length.
//
// Like real MIFARE Classic cards, a card halts after a failed
// authentication and ignores exchanges until it is listed again.
func (r *Reader) Respond(cmd byte, args []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch cmd {
	case 0x02: // GetFirmwareVersion
		return []byte{0x03, 0x32, 0x01, 0x06, 0x07}, nil
	case 0x14, 0x32: // SAMConfiguration, RFConfiguration
		return []byte{cmd + 1}, nil
	case 0x4A:
		return r.listTarget(), nil
	case 0x40:
		if len(args) < 3 {
			return nil, fmt.Errorf("%w: InDataExchange with %d bytes", ErrOutOfRange, len(args))
		}
		return r.exchange(args[1:]), nil
	case 0x52:
		r.selected = false
		return []byte{0x53, statusOK}, nil
	default:
		return nil, fmt.Errorf("unsupported command 0x%02X", cmd)
	}
}

func (r *Reader) listTarget() []byte {
	r.selected = false
	if r.card == nil {
		return []byte{0x4B, 0x00}
	}
	if r.glitches > 0 {
		r.glitches--
		return []byte{0x4B, 0x00}
	}
	uidLen := byte(len(r.card.UID))
	if r.faults > 0 {
		r.faults--
		uidLen = 5
	}
	r.selected = true
	r.authSector = -1

	resp := []byte{0x4B, 0x01, 0x01, 0x00, 0x04, 0x08, uidLen}
	return append(resp, r.card.UID...)
}

func (r *Reader) exchange(data []byte) []byte {
	if r.card == nil || !r.selected {
		return []byte{0x41, statusTimeout}
	}

	block := int(data[1])
	if block >= Blocks {
		r.selected = false
		return []byte{0x41, statusTimeout}
	}
	sector := block / BlocksPerSector

	switch data[0] {
	case 0x60: // auth with key A
		if len(data) < 8 || r.card.Locked || !bytes.Equal(data[2:8], r.card.keyA(sector)) {
			r.selected = false
			return []byte{0x41, statusAuthError}
		}
		r.authSector = sector
		return []byte{0x41, statusOK}
	case 0x30: // read
		if sector != r.authSector {
			r.selected = false
			return []byte{0x41, statusAuthError}
		}
		r.sectorReads++
		resp := []byte{0x41, statusOK}
		return append(resp, r.card.Memory[block][:]...)
	default:
		return []byte{0x41, statusTimeout}
	}
}
