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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNDEFTLV(t *testing.T) {
	t.Parallel()

	long := bytes.Repeat([]byte{0xAB}, 300)

	tests := []struct {
		name      string
		data      []byte
		want      []byte
		wantFound bool
		wantErr   bool
	}{
		{
			name:      "simple NDEF TLV",
			data:      []byte{0x03, 0x03, 0xD1, 0x01, 0x01},
			want:      []byte{0xD1, 0x01, 0x01},
			wantFound: true,
		},
		{
			name:      "NDEF TLV after NULL padding",
			data:      []byte{0x00, 0x00, 0x03, 0x03, 0xAA, 0xBB, 0xCC},
			want:      []byte{0xAA, 0xBB, 0xCC},
			wantFound: true,
		},
		{
			name:      "lock control TLV skipped by length",
			data:      []byte{0x01, 0x03, 0xA0, 0x10, 0x44, 0x03, 0x02, 0xBB, 0xCC, 0xFE},
			want:      []byte{0xBB, 0xCC},
			wantFound: true,
		},
		{
			name:      "long length form",
			data:      append([]byte{0x03, 0xFF, 0x01, 0x2C}, long...),
			want:      long,
			wantFound: true,
		},
		{
			name: "terminator before NDEF",
			data: []byte{0xFE, 0x03, 0x01, 0xAA},
		},
		{
			name: "no NDEF TLV",
			data: []byte{0x01, 0x02, 0xAA, 0xBB, 0x02, 0x01, 0xCC},
		},
		{
			name: "empty data",
			data: []byte{},
		},
		{
			name: "blank sector",
			data: make([]byte, 48),
		},
		{
			name:    "truncated NDEF TLV",
			data:    []byte{0x03, 0x05, 0x01, 0x02},
			wantErr: true,
		},
		{
			name:    "truncated long length",
			data:    []byte{0x03, 0xFF, 0x01},
			wantErr: true,
		},
		{
			name:    "missing length",
			data:    []byte{0x00, 0x03},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, found, err := findNDEFTLV(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errTruncatedTLV)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrapNDEFTLV(t *testing.T) {
	t.Parallel()

	short := wrapNDEFTLV([]byte{0xD1, 0x01})
	assert.Equal(t, []byte{0x03, 0x02, 0xD1, 0x01, 0xFE}, short)

	payload := bytes.Repeat([]byte{0x11}, 0x1FF)
	wrapped := wrapNDEFTLV(payload)
	assert.Equal(t, []byte{0x03, 0xFF, 0x01, 0xFF}, wrapped[:4])
	assert.Equal(t, byte(0xFE), wrapped[len(wrapped)-1])

	got, found, err := findNDEFTLV(wrapped)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload, got)
}
