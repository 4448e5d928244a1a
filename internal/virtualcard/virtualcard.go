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

// Package virtualcard simulates a proximity reader and MIFARE Classic 1K
// cards for tests and for running the player without hardware. A Reader
// can also answer raw PN532 commands, see Respond.
package virtualcard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/credential"
)

// MIFARE Classic 1K geometry.
const (
	BlockSize       = 16
	BlocksPerSector = 4
	Sectors         = 16
	Blocks          = Sectors * BlocksPerSector
)

var (
	ErrNoCard        = errors.New("no card in field")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrAntiCollision = errors.New("anti-collision failed")
	ErrOutOfRange    = errors.New("block out of range")
)

// Card is a simulated MIFARE Classic 1K card.
type Card struct {
	UID    []byte
	Memory [Blocks][BlockSize]byte
	// Locked cards reject every authentication, like a card whose keys
	// are not known to the reader.
	Locked bool
}

// NewMIFARE1K creates a blank card with transport-key sector trailers.
func NewMIFARE1K(uid []byte) *Card {
	c := &Card{UID: append([]byte(nil), uid...)}
	copy(c.Memory[0][:], uid)
	for sector := range Sectors {
		c.Memory[trailer(sector)] = [BlockSize]byte{
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
			0xFF, 0x07, 0x80, 0x69,
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		}
	}
	return c
}

// NewCredentialCard creates a card holding creds at the default credential
// range.
func NewCredentialCard(uid []byte, creds card.Credentials, f credential.Format) (*Card, error) {
	c := NewMIFARE1K(uid)
	image, err := credential.Encode(creds, f)
	if err != nil {
		return nil, err
	}
	if err := c.WriteData(credential.DefaultRange.Sector, image); err != nil {
		return nil, err
	}
	return c, nil
}

// Identifier returns the card UID.
func (c *Card) Identifier() card.Identifier {
	return card.NewIdentifier(c.UID)
}

// WriteData stores data in the data blocks starting at the first block of
// sector, skipping sector trailers.
func (c *Card) WriteData(sector uint8, data []byte) error {
	block := int(sector) * BlocksPerSector
	for off := 0; off < len(data); block++ {
		if block >= Blocks {
			return fmt.Errorf("%w: %d bytes do not fit from sector %d", ErrOutOfRange, len(data), sector)
		}
		if isTrailer(block) {
			continue
		}
		var buf [BlockSize]byte
		off += copy(buf[:], data[off:])
		c.Memory[block] = buf
	}
	return nil
}

// readData returns count data blocks starting at block within sector.
func (c *Card) readData(sector, block, count uint8) ([]byte, error) {
	if c.Locked {
		return nil, fmt.Errorf("sector %d: %w", sector, ErrAuthFailed)
	}
	if block >= BlocksPerSector-1 {
		return nil, fmt.Errorf("%w: block %d is a trailer", ErrOutOfRange, block)
	}
	out := make([]byte, 0, int(count)*BlockSize)
	abs := int(sector)*BlocksPerSector + int(block)
	for n := 0; n < int(count); abs++ {
		if abs >= Blocks {
			return nil, fmt.Errorf("%w: block %d", ErrOutOfRange, abs)
		}
		if isTrailer(abs) {
			continue
		}
		out = append(out, c.Memory[abs][:]...)
		n++
	}
	return out, nil
}

func trailer(sector int) int {
	return sector*BlocksPerSector + BlocksPerSector - 1
}

func isTrailer(block int) bool {
	return block%BlocksPerSector == BlocksPerSector-1
}

// Reader is a simulated reader with a single card slot. It implements
// card.Reader and credential.SectorReader and is safe for concurrent use.
type Reader struct {
	card        *Card
	mu          sync.Mutex
	glitches    int
	faults      int
	sectorReads int
	authSector  int
	selected    bool
}

// NewReader returns a reader with an empty field.
func NewReader() *Reader {
	return &Reader{}
}

// Present places c in the field, replacing any card already there.
func (r *Reader) Present(c *Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.card = c
	r.selected = false
}

// Remove empties the field.
func (r *Reader) Remove() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.card = nil
}

// Glitch makes the next n presence checks miss the card.
func (r *Reader) Glitch(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.glitches = n
}

// Fault makes the next n identifier reads fail.
func (r *Reader) Fault(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = n
}

// SectorReads returns how many memory reads were attempted.
func (r *Reader) SectorReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sectorReads
}

// CardPresent implements card.Reader.
func (r *Reader) CardPresent(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.glitches > 0 {
		r.glitches--
		return false, nil
	}
	return r.card != nil, nil
}

// ReadIdentifier implements card.Reader.
func (r *Reader) ReadIdentifier(ctx context.Context) (card.Identifier, error) {
	if err := ctx.Err(); err != nil {
		return card.Identifier{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.card == nil {
		return card.Identifier{}, ErrNoCard
	}
	if r.faults > 0 {
		r.faults--
		return card.Identifier{}, ErrAntiCollision
	}
	return r.card.Identifier(), nil
}

// ReadSector implements credential.SectorReader.
func (r *Reader) ReadSector(ctx context.Context, sector, block, count uint8) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sectorReads++
	if r.card == nil {
		return nil, ErrNoCard
	}
	return r.card.readData(sector, block, count)
}
