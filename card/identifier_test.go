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

package card_test

import (
	"testing"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		wantStr string
		uid     []byte
	}{
		{
			name:    "four byte UID",
			uid:     []byte{0x1A, 0x2B, 0x3C, 0x4D},
			want:    "1A2B3C4D",
			wantStr: "1A2B3C4D",
		},
		{
			name:    "seven byte UID uses first four bytes",
			uid:     []byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC},
			want:    "04123456",
			wantStr: "04123456789ABC",
		},
		{
			name:    "short UID is zero padded",
			uid:     []byte{0xAB},
			want:    "AB000000",
			wantStr: "AB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id := card.NewIdentifier(tt.uid)
			assert.Equal(t, tt.want, id.Key())
			assert.Equal(t, tt.wantStr, id.String())
			assert.Equal(t, len(tt.uid), id.Len())
		})
	}
}

func TestIdentifierEquality(t *testing.T) {
	t.Parallel()

	a := card.NewIdentifier([]byte{0x01, 0x02, 0x03, 0x04})
	b := card.NewIdentifier([]byte{0x01, 0x02, 0x03, 0x04})
	c := card.NewIdentifier([]byte{0x01, 0x02, 0x03, 0x04, 0x00})

	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.False(t, a == c, "length is part of identity")
	assert.True(t, card.Identifier{}.IsZero())
	assert.False(t, a.IsZero())
}

func TestNewIdentifierCopies(t *testing.T) {
	t.Parallel()

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	id := card.NewIdentifier(raw)
	raw[0] = 0x00

	assert.Equal(t, "DEADBEEF", id.String())

	out := id.Bytes()
	out[1] = 0x00
	assert.Equal(t, "DEADBEEF", id.String())
}

func TestParseIdentifier(t *testing.T) {
	t.Parallel()

	id, err := card.ParseIdentifier("1a2b3c4d")
	require.NoError(t, err)
	assert.Equal(t, card.NewIdentifier([]byte{0x1A, 0x2B, 0x3C, 0x4D}), id)

	for _, bad := range []string{"", "xyz", "123", "00112233445566778899AA"} {
		_, err := card.ParseIdentifier(bad)
		require.ErrorIs(t, err, card.ErrInvalidIdentifier, bad)
	}
}

func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	long := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'a'
		}
		return string(b)
	}

	tests := []struct {
		wantErr error
		creds   card.Credentials
		name    string
	}{
		{name: "valid", creds: card.Credentials{SSID: "home", Passphrase: "secret123"}},
		{name: "open network", creds: card.Credentials{SSID: "cafe"}},
		{name: "max lengths", creds: card.Credentials{SSID: long(32), Passphrase: long(63)}},
		{name: "empty SSID", creds: card.Credentials{Passphrase: "x"}, wantErr: card.ErrEmptySSID},
		{name: "SSID too long", creds: card.Credentials{SSID: long(33)}, wantErr: card.ErrSSIDTooLong},
		{
			name:    "passphrase too long",
			creds:   card.Credentials{SSID: "a", Passphrase: long(64)},
			wantErr: card.ErrPassphraseLength,
		},
		{
			name:    "newline in passphrase",
			creds:   card.Credentials{SSID: "a", Passphrase: "x\ny"},
			wantErr: card.ErrControlCharacter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.creds.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCredentialsStringHidesPassphrase(t *testing.T) {
	t.Parallel()

	s := card.Credentials{SSID: "home", Passphrase: "hunter22"}.String()
	assert.Contains(t, s, "home")
	assert.NotContains(t, s, "hunter22")
}
