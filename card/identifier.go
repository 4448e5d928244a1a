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

package card

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// MaxIdentifierLen is the longest UID an ISO14443A reader reports (triple size).
const MaxIdentifierLen = 10

// keyLen is the number of UID bytes that name a card in the mapping database.
const keyLen = 4

// ErrInvalidIdentifier is returned by ParseIdentifier for malformed input.
var ErrInvalidIdentifier = errors.New("invalid card identifier")

// Identifier is the UID of a presented card. It is a comparable value type:
// two identifiers are the same card when they compare equal with ==.
// The zero value means "no card".
type Identifier struct {
	data [MaxIdentifierLen]byte
	n    uint8
}

// NewIdentifier copies b into an Identifier, truncating anything beyond
// MaxIdentifierLen bytes.
func NewIdentifier(b []byte) Identifier {
	var id Identifier
	id.n = uint8(copy(id.data[:], b))
	return id
}

// ParseIdentifier decodes a hexadecimal UID such as "1A2B3C4D".
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}
	if len(b) > MaxIdentifierLen {
		return Identifier{}, fmt.Errorf("%w: %d bytes, max %d", ErrInvalidIdentifier, len(b), MaxIdentifierLen)
	}
	return NewIdentifier(b), nil
}

// Bytes returns a copy of the UID bytes.
func (id Identifier) Bytes() []byte {
	out := make([]byte, id.n)
	copy(out, id.data[:id.n])
	return out
}

// Len returns the UID length in bytes.
func (id Identifier) Len() int {
	return int(id.n)
}

// IsZero reports whether id holds no card.
func (id Identifier) IsZero() bool {
	return id.n == 0
}

// String returns the full UID as upper-case hex.
func (id Identifier) String() string {
	return strings.ToUpper(hex.EncodeToString(id.data[:id.n]))
}

// Key returns the mapping-database form of the UID: the first four bytes as
// eight upper-case hex characters, zero padded for shorter UIDs.
func (id Identifier) Key() string {
	var k [keyLen]byte
	copy(k[:], id.data[:id.n])
	return strings.ToUpper(hex.EncodeToString(k[:]))
}
