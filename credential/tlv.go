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

package credential

import (
	"errors"
	"fmt"
)

// NFC Forum tag TLV block types.
const (
	tlvNull       = 0x00
	tlvNDEF       = 0x03
	tlvTerminator = 0xFE
	tlvLongLength = 0xFF
)

var errTruncatedTLV = errors.New("truncated TLV")

// findNDEFTLV scans a tag memory dump for the first NDEF Message TLV and
// returns its value. NULL TLVs are skipped, other TLVs are skipped by
// length, and a terminator TLV ends the search.
func findNDEFTLV(data []byte) ([]byte, bool, error) {
	i := 0
	for i < len(data) {
		typ := data[i]
		switch typ {
		case tlvNull:
			i++
			continue
		case tlvTerminator:
			return nil, false, nil
		}

		length, hdr, err := parseTLVLength(data, i+1)
		if err != nil {
			return nil, false, fmt.Errorf("TLV 0x%02X at offset %d: %w", typ, i, err)
		}
		start := i + 1 + hdr
		end := start + length
		if end > len(data) {
			return nil, false, fmt.Errorf("TLV 0x%02X at offset %d needs %d bytes, have %d: %w",
				typ, i, length, len(data)-start, errTruncatedTLV)
		}
		if typ == tlvNDEF {
			return data[start:end], true, nil
		}
		i = end
	}
	return nil, false, nil
}

// parseTLVLength decodes the one or three byte length field at offset and
// returns the length and the number of bytes it occupied.
func parseTLVLength(data []byte, offset int) (length, size int, err error) {
	if offset >= len(data) {
		return 0, 0, errTruncatedTLV
	}
	if data[offset] != tlvLongLength {
		return int(data[offset]), 1, nil
	}
	if offset+2 >= len(data) {
		return 0, 0, errTruncatedTLV
	}
	return int(data[offset+1])<<8 | int(data[offset+2]), 3, nil
}

// wrapNDEFTLV encloses an NDEF message in an NDEF TLV followed by a
// terminator, choosing the short length form when it fits.
func wrapNDEFTLV(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+5)
	out = append(out, tlvNDEF)
	if len(msg) < tlvLongLength {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, tlvLongLength, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	return append(out, tlvTerminator)
}
