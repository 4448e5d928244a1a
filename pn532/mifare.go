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
	"errors"
	"fmt"
)

// MIFARE Classic commands relayed through InDataExchange
const (
	mifareCmdAuthA = 0x60
	mifareCmdRead  = 0x30
)

const (
	// MIFAREBlockSize is the size of one MIFARE Classic block.
	MIFAREBlockSize = 16
	// MIFAREBlocksPerSector is the block count of a small sector.
	MIFAREBlocksPerSector = 4
	// mifareMaxSector keeps absolute block numbers within one byte.
	mifareMaxSector = 63
)

// NDEFKey is the public key A of NFC Forum formatted data sectors.
var NDEFKey = [6]byte{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}

// transportKeys are tried after NDEFKey, for blank or factory cards.
var transportKeys = [][6]byte{
	{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5},
	{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5},
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// ReadSector implements credential.SectorReader for MIFARE Classic cards.
// It reads count data blocks starting at block of sector and continues
// into following sectors, skipping sector trailers. Each sector is
// authenticated with key A.
func (d *Device) ReadSector(ctx context.Context, sector, block, count uint8) ([]byte, error) {
	if d.target == nil {
		return nil, ErrNoTarget
	}
	if block >= MIFAREBlocksPerSector-1 {
		return nil, fmt.Errorf("%w: block %d is not a data block", ErrInvalidParameter, block)
	}

	out := make([]byte, 0, int(count)*MIFAREBlockSize)
	for read := uint8(0); read < count; sector++ {
		if sector > mifareMaxSector {
			return nil, fmt.Errorf("%w: sector %d", ErrInvalidParameter, sector)
		}
		if err := d.authenticate(ctx, sector); err != nil {
			return nil, fmt.Errorf("sector %d: %w", sector, err)
		}
		for ; block < MIFAREBlocksPerSector-1 && read < count; block++ {
			data, err := d.readBlock(ctx, sector*MIFAREBlocksPerSector+block)
			if err != nil {
				return nil, fmt.Errorf("sector %d block %d: %w", sector, block, err)
			}
			out = append(out, data...)
			read++
		}
		block = 0
	}
	return out, nil
}

// authenticate tries NDEFKey, then the transport keys. A card halts after
// a failed authentication, so it is selected again before the next key.
func (d *Device) authenticate(ctx context.Context, sector uint8) error {
	uid := d.target.UID
	trailer := sector*MIFAREBlocksPerSector + MIFAREBlocksPerSector - 1

	keys := append([][6]byte{NDEFKey}, transportKeys...)
	var lastErr error
	for i, key := range keys {
		if i > 0 {
			if err := d.reselect(ctx, uid); err != nil {
				return err
			}
		}

		cmd := make([]byte, 0, 12)
		cmd = append(cmd, mifareCmdAuthA, trailer)
		cmd = append(cmd, key[:]...)
		// Key derivation uses the last four UID bytes for single size
		// UIDs and the first four cascade bytes otherwise.
		cmd = append(cmd, uid[len(uid)-4:]...)
		if _, err := d.dataExchange(ctx, cmd); err != nil {
			if !errors.Is(err, ErrCommandFailed) {
				return err
			}
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAuthFailed, lastErr)
}

func (d *Device) reselect(ctx context.Context, uid []byte) error {
	present, err := d.CardPresent(ctx)
	if err != nil {
		return err
	}
	if !present || d.target == nil || string(d.target.UID) != string(uid) {
		return fmt.Errorf("%w: card left the field", ErrNoTarget)
	}
	return nil
}

func (d *Device) readBlock(ctx context.Context, block uint8) ([]byte, error) {
	data, err := d.dataExchange(ctx, []byte{mifareCmdRead, block})
	if err != nil {
		return nil, err
	}
	if len(data) < MIFAREBlockSize {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrUnexpectedResponse, len(data))
	}
	return data[:MIFAREBlockSize], nil
}
