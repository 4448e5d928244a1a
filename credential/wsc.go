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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/tagbox/card"
)

// WSCMediaType is the MIME type of a Wi-Fi Simple Configuration record, as
// written by phone apps that create "Wi-Fi network" tags.
const WSCMediaType = "application/vnd.wfa.wsc"

// WSC attribute identifiers.
const (
	wscCredential = 0x100E
	wscSSID       = 0x1045
	wscNetworkKey = 0x1027
)

var errNoWSCCredential = errors.New("no credential attribute in WSC record")

// wscAttributes walks the type/length/value attribute list of a WSC payload
// and calls fn for each attribute.
func wscAttributes(buf []byte, fn func(typ uint16, value []byte)) error {
	for len(buf) > 0 {
		if len(buf) < 4 {
			return fmt.Errorf("WSC attribute header: %w", errTruncatedTLV)
		}
		typ := binary.BigEndian.Uint16(buf[0:2])
		n := int(binary.BigEndian.Uint16(buf[2:4]))
		if len(buf) < 4+n {
			return fmt.Errorf("WSC attribute 0x%04X: %w", typ, errTruncatedTLV)
		}
		fn(typ, buf[4:4+n])
		buf = buf[4+n:]
	}
	return nil
}

// decodeWSC extracts the first credential from a WSC payload.
func decodeWSC(payload []byte) (card.Credentials, error) {
	var credential []byte
	err := wscAttributes(payload, func(typ uint16, value []byte) {
		if typ == wscCredential && credential == nil {
			credential = value
		}
	})
	if err != nil {
		return card.Credentials{}, err
	}
	if credential == nil {
		return card.Credentials{}, errNoWSCCredential
	}

	var creds card.Credentials
	err = wscAttributes(credential, func(typ uint16, value []byte) {
		switch typ {
		case wscSSID:
			creds.SSID = string(value)
		case wscNetworkKey:
			creds.Passphrase = string(value)
		}
	})
	if err != nil {
		return card.Credentials{}, err
	}
	return creds, nil
}

// encodeWSC builds a minimal WSC payload holding one credential.
func encodeWSC(creds card.Credentials) []byte {
	attr := func(typ uint16, value []byte) []byte {
		b := make([]byte, 4, 4+len(value))
		binary.BigEndian.PutUint16(b[0:2], typ)
		binary.BigEndian.PutUint16(b[2:4], uint16(len(value)))
		return append(b, value...)
	}
	inner := append(attr(wscSSID, []byte(creds.SSID)), attr(wscNetworkKey, []byte(creds.Passphrase))...)
	return attr(wscCredential, inner)
}
