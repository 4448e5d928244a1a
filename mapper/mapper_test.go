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

package mapper_test

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cardA  = card.NewIdentifier([]byte{0x1A, 0x2B, 0x3C, 0x4D})
	cardFF = card.NewIdentifier([]byte{0xFF, 0xFF, 0xFF, 0xFF})
)

func db(content string) fstest.MapFS {
	return fstest.MapFS{mapper.DefaultFile: &fstest.MapFile{Data: []byte(content)}}
}

// filename returns "/" followed by n-1 'a' characters.
func filename(n int) string {
	return "/" + strings.Repeat("a", n-1)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	maxLine := "1A2B3C4D " + filename(mapper.MaxFilenameLength)
	require.Len(t, maxLine, mapper.MaxLineLength)

	tests := []struct {
		name      string
		content   string
		want      string
		wantCode  mapper.Code
		wantCause mapper.Code
		wantLine  int
		id        card.Identifier
	}{
		{
			name:    "single entry",
			content: "1A2B3C4D /music/track1.mp3\n",
			id:      cardA,
			want:    "/music/track1.mp3",
		},
		{
			name:     "absent identifier",
			content:  "1A2B3C4D /music/track1.mp3\n",
			id:       cardFF,
			wantCode: mapper.IDNotFound,
		},
		{
			name:    "lower case identifier in file",
			content: "1a2b3c4d /music/track1.mp3\n",
			id:      cardA,
			want:    "/music/track1.mp3",
		},
		{
			name:    "first match wins",
			content: "1A2B3C4D /first.mp3\n1A2B3C4D /second.mp3\n",
			id:      cardA,
			want:    "/first.mp3",
		},
		{
			name:    "CRLF terminators",
			content: "FFFFFFFF /other.mp3\r\n1A2B3C4D /music/track1.mp3\r\n",
			id:      cardA,
			want:    "/music/track1.mp3",
		},
		{
			name:    "line at maximum length",
			content: maxLine + "\n",
			id:      cardA,
			want:    filename(mapper.MaxFilenameLength),
		},
		{
			name:    "line at maximum length with CRLF",
			content: maxLine + "\r\n",
			id:      cardA,
			want:    filename(mapper.MaxFilenameLength),
		},
		{
			name:     "line one character too long",
			content:  maxLine + "x\n",
			id:       cardA,
			wantCode: mapper.LineTooLong,
			wantLine: 1,
		},
		{
			name:     "overlong line far past buffer",
			content:  "1A2B3C4D /" + strings.Repeat("x", 200) + "\n",
			id:       cardA,
			wantCode: mapper.LineTooLong,
			wantLine: 1,
		},
		{
			name:     "last line without terminator",
			content:  "FFFFFFFF /a.mp3\n1A2B3C4D /music/track1.mp3",
			id:       cardA,
			wantCode: mapper.LineTooLong,
			wantLine: 2,
		},
		{
			name:     "overlong line aborts before a later match",
			content:  "FFFFFFFF /" + strings.Repeat("x", 60) + "\n1A2B3C4D /music/track1.mp3\n",
			id:       cardA,
			wantCode: mapper.LineTooLong,
			wantLine: 1,
		},
		{
			name:    "match before an overlong line",
			content: "1A2B3C4D /music/track1.mp3\nFFFFFFFF /" + strings.Repeat("x", 60) + "\n",
			id:      cardA,
			want:    "/music/track1.mp3",
		},
		{
			name:      "seven hex digit identifier",
			content:   "1A2B3C4 /music/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedCardID,
			wantLine:  1,
		},
		{
			name:      "non-hex identifier",
			content:   "1A2B3C4G /music/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedCardID,
			wantLine:  1,
		},
		{
			name:      "bad identifier wins over bad filename",
			content:   "1A2BXC4D music/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedCardID,
			wantLine:  1,
		},
		{
			name:      "missing separator",
			content:   "1A2B3C4Dmusic/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedLineSyntax,
			wantLine:  1,
		},
		{
			name:      "double separator",
			content:   "1A2B3C4D  /music/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedLineSyntax,
			wantLine:  1,
		},
		{
			name:      "trailing padding",
			content:   "1A2B3C4D /music/x.mp3 \n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedLineSyntax,
			wantLine:  1,
		},
		{
			name:      "filename without leading slash",
			content:   "1A2B3C4D music/x.mp3\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedFileName,
			wantLine:  1,
		},
		{
			name:      "blank line",
			content:   "\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.LineTooShort,
			wantLine:  1,
		},
		{
			name:      "identifier only",
			content:   "1A2B3C4D \n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.LineTooShort,
			wantLine:  1,
		},
		{
			name:    "malformed lines are skipped",
			content: "garbage\n1A2B3C4Dnope\n1A2B3C4D /music/track1.mp3\n",
			id:      cardA,
			want:    "/music/track1.mp3",
		},
		{
			name:      "first anomaly attached when nothing matches",
			content:   "FFFFFFFF /a.mp3\n1A2B3C4Dnope\nshort\n",
			id:        cardA,
			wantCode:  mapper.IDNotFound,
			wantCause: mapper.MalformedLineSyntax,
			wantLine:  2,
		},
		{
			name:     "empty database",
			content:  "",
			id:       cardA,
			wantCode: mapper.IDNotFound,
		},
		{
			name:    "seven byte UID uses first four bytes",
			content: "04123456 /ntag.mp3\n",
			id:      card.NewIdentifier([]byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}),
			want:    "/ntag.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := mapper.New(db(tt.content))

			got, err := m.Resolve(tt.id)

			if tt.wantCode == mapper.OK {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				assert.True(t, strings.HasPrefix(got, "/"))
				assert.LessOrEqual(t, len(got), mapper.MaxFilenameLength)
				return
			}

			assert.Empty(t, got)
			var merr *mapper.Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.wantCode, merr.Code, err.Error())
			if tt.wantCause == mapper.OK {
				assert.Equal(t, tt.wantLine, merr.Line)
				return
			}
			var cause *mapper.Error
			require.ErrorAs(t, merr.Err, &cause)
			assert.Equal(t, tt.wantCause, cause.Code)
			assert.Equal(t, tt.wantLine, cause.Line)
		})
	}
}

func TestResolveMissingDatabase(t *testing.T) {
	t.Parallel()

	m := mapper.New(fstest.MapFS{})
	got, err := m.Resolve(cardA)

	assert.Empty(t, got)
	require.ErrorIs(t, err, mapper.ErrMappingFileNotFound)
	code, ok := mapper.CodeOf(err)
	require.True(t, ok)
	assert.True(t, code.Fatal())
}

func TestResolveCustomFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"cards/db.txt": &fstest.MapFile{Data: []byte("1A2B3C4D /x.mp3\n")}}
	m := mapper.New(fsys, mapper.WithFile("/cards/db.txt"))

	got, err := m.Resolve(cardA)
	require.NoError(t, err)
	assert.Equal(t, "/x.mp3", got)
	assert.Equal(t, "cards/db.txt", m.File())
}

func TestResolveVerifyReferenced(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		mapper.DefaultFile: &fstest.MapFile{Data: []byte(
			"1A2B3C4D /music/track1.mp3\nFFFFFFFF /music/missing.mp3\n01020304 /music\n")},
		"music/track1.mp3": &fstest.MapFile{Data: []byte("ID3")},
	}
	m := mapper.New(fsys, mapper.WithVerifyReferenced(true))

	got, err := m.Resolve(cardA)
	require.NoError(t, err)
	assert.Equal(t, "/music/track1.mp3", got)

	_, err = m.Resolve(cardFF)
	require.ErrorIs(t, err, mapper.ErrReferencedFileNotFound)

	_, err = m.Resolve(card.NewIdentifier([]byte{1, 2, 3, 4}))
	require.ErrorIs(t, err, mapper.ErrReferencedFileNotFound, "directories are not playable")

	unverified := mapper.New(fsys)
	got, err = unverified.Resolve(cardFF)
	require.NoError(t, err)
	assert.Equal(t, "/music/missing.mp3", got)
}

func TestResolveObserver(t *testing.T) {
	t.Parallel()

	var codes []mapper.Code
	m := mapper.New(db("1A2B3C4D /a.mp3\n"), mapper.WithObserver(func(c mapper.Code, d time.Duration) {
		codes = append(codes, c)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}))

	_, _ = m.Resolve(cardA)
	_, _ = m.Resolve(cardFF)

	assert.Equal(t, []mapper.Code{mapper.OK, mapper.IDNotFound}, codes)
}

func TestResolveMalformedLineStaysNotFound(t *testing.T) {
	t.Parallel()

	var codes []mapper.Code
	m := mapper.New(db("1A2B3C4D /music/track1.mp3\n1A2B3C4 /music/x.mp3\n"),
		mapper.WithObserver(func(c mapper.Code, _ time.Duration) { codes = append(codes, c) }))

	_, err := m.Resolve(cardFF)

	require.ErrorIs(t, err, mapper.ErrIDNotFound)
	require.ErrorIs(t, err, mapper.ErrMalformedCardID, "anomaly stays reachable")
	code, ok := mapper.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, mapper.IDNotFound, code)
	assert.Equal(t, []mapper.Code{mapper.IDNotFound}, codes)
	assert.Contains(t, err.Error(), "line 2")
}

func TestCheck(t *testing.T) {
	t.Parallel()

	require.NoError(t, mapper.New(db("1A2B3C4D /a.mp3\nFFFFFFFF /b.mp3\n")).Check())
	require.NoError(t, mapper.New(db("")).Check())

	err := mapper.New(db("1A2B3C4D /a.mp3\nFFFFFFFF b.mp3\n1A2B3C4 /c.mp3\n")).Check()
	var merr *mapper.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, mapper.MalformedFileName, merr.Code)
	assert.Equal(t, 2, merr.Line)

	err = mapper.New(fstest.MapFS{}).Check()
	require.ErrorIs(t, err, mapper.ErrMappingFileNotFound)
}

func TestWalk(t *testing.T) {
	t.Parallel()

	m := mapper.New(db("1A2B3C4D /a.mp3\nbad line\nffffffff /b.mp3\n"))

	var got []mapper.Entry
	err := m.Walk(func(e mapper.Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []mapper.Entry{
		{ID: "1A2B3C4D", Filename: "/a.mp3"},
		{ID: "ffffffff", Filename: "/b.mp3"},
	}, got)

	calls := 0
	err = m.Walk(func(mapper.Entry) error {
		calls++
		return mapper.ErrStopWalk
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	err = m.Walk(func(mapper.Entry) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestNewEntry(t *testing.T) {
	t.Parallel()

	e, err := mapper.NewEntry("1a2b3c4d", "/music/x.mp3")
	require.NoError(t, err)
	assert.Equal(t, "1A2B3C4D", e.ID)
	assert.Equal(t, "1A2B3C4D /music/x.mp3", e.String())

	_, err = mapper.NewEntry("1A2B3C4D", "music/x.mp3")
	require.ErrorIs(t, err, mapper.ErrMalformedFileName)

	_, err = mapper.NewEntry("1A2B3C4D", filename(mapper.MaxFilenameLength+1))
	require.ErrorIs(t, err, mapper.ErrLineTooLong)

	_, err = mapper.NewEntry("1A2B3C4", "/x.mp3")
	require.ErrorIs(t, err, mapper.ErrMalformedCardID)
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MALFORMED_CARD_ID", mapper.MalformedCardID.String())
	assert.False(t, mapper.MalformedCardID.Fatal())
	assert.True(t, mapper.LineTooLong.Fatal())
	assert.True(t, mapper.LineTooShort.Malformed())
	assert.False(t, mapper.IDNotFound.Malformed())

	err := &mapper.Error{Code: mapper.LineTooShort, Line: 3}
	assert.Equal(t, "mapper: line 3: LINE_TOO_SHORT", err.Error())
	assert.ErrorIs(t, err, mapper.ErrLineTooShort)
	assert.NotErrorIs(t, err, mapper.ErrIDNotFound)

	code, ok := mapper.CodeOf(nil)
	assert.True(t, ok)
	assert.Equal(t, mapper.OK, code)

	_, ok = mapper.CodeOf(errors.New("other"))
	assert.False(t, ok)
}
