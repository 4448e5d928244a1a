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
	"fmt"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/hsanjuan/go-ndef"
)

// Format selects the record type Encode writes.
type Format int

const (
	// FormatText writes a well-known text record "SSID\npassphrase".
	FormatText Format = iota
	// FormatWSC writes a Wi-Fi Simple Configuration media record.
	FormatWSC
)

// ParseFormat maps "text" or "wsc" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "wsc":
		return FormatWSC, nil
	default:
		return 0, fmt.Errorf("unknown credential format %q", s)
	}
}

// Encode produces the memory image of a credential card: an NDEF TLV
// holding one record, followed by a terminator TLV. The image is what
// Decode accepts and what a card writer stores from the first data block
// of the credential range.
func Encode(creds card.Credentials, f Format) ([]byte, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var msg []byte
	switch f {
	case FormatText:
		b, err := ndef.NewTextMessage(creds.SSID+"\n"+creds.Passphrase, "en").Marshal()
		if err != nil {
			return nil, fmt.Errorf("marshal text record: %w", err)
		}
		msg = b
	case FormatWSC:
		msg = mediaRecord(WSCMediaType, encodeWSC(creds))
	default:
		return nil, fmt.Errorf("unknown credential format %d", f)
	}
	return wrapNDEFTLV(msg), nil
}

// mediaRecord builds a single MB|ME media-type record. The short record
// form is used when the payload fits in one length byte.
func mediaRecord(mime string, payload []byte) []byte {
	const (
		flagMB = 0x80
		flagME = 0x40
		flagSR = 0x10
	)
	hdr := byte(flagMB | flagME | ndef.MediaType)
	out := make([]byte, 0, len(mime)+len(payload)+6)
	if len(payload) < 256 {
		out = append(out, hdr|flagSR, byte(len(mime)), byte(len(payload)))
	} else {
		n := len(payload)
		out = append(out, hdr, byte(len(mime)), byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	out = append(out, mime...)
	return append(out, payload...)
}
