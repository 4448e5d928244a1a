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

package mapper

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Database line layout: "<8 hex digits> </filename>\n".
const (
	IDLength          = 8
	Separator         = ' '
	MaxFilenameLength = 50
	MaxLineLength     = IDLength + 1 + MaxFilenameLength
	MinLineLength     = IDLength + 1 + 1
	PathSeparator     = '/'
)

// Entry is one valid line of the database.
type Entry struct {
	ID       string
	Filename string
}

func (e Entry) String() string {
	return e.ID + string(Separator) + e.Filename
}

// NewEntry validates id and filename as a database line would be validated
// and returns the entry with the identifier upper-cased.
func NewEntry(id, filename string) (Entry, error) {
	line := id + string(Separator) + filename
	if len(line) > MaxLineLength {
		return Entry{}, newError(LineTooLong, 0, nil)
	}
	e, code := parseLine([]byte(line))
	if code != OK {
		return Entry{}, newError(code, 0, nil)
	}
	e.ID = strings.ToUpper(e.ID)
	return e, nil
}

// parseLine validates a line with its terminator already removed. Checks run
// in a fixed order so a line with several defects always reports the first.
func parseLine(line []byte) (Entry, Code) {
	if len(line) < MinLineLength {
		return Entry{}, LineTooShort
	}
	for _, c := range line[:IDLength] {
		if !isHex(c) {
			return Entry{}, MalformedCardID
		}
	}
	if line[IDLength] != Separator || line[IDLength+1] == Separator {
		return Entry{}, MalformedLineSyntax
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return Entry{}, MalformedLineSyntax
	}
	name := line[IDLength+1:]
	if name[0] != PathSeparator || len(name) > MaxFilenameLength {
		return Entry{}, MalformedFileName
	}
	return Entry{ID: string(line[:IDLength]), Filename: string(name)}, OK
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// lineReader yields one line at a time from a buffer that can hold exactly
// one maximum-length line plus a CRLF terminator.
type lineReader struct {
	r    *bufio.Reader
	text []byte
	n    int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, MaxLineLength+2)}
}

// next advances to the next line. It returns false with a nil error at a
// clean end of file. The returned text is only valid until the next call.
func (lr *lineReader) next() (bool, error) {
	raw, err := lr.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		lr.n++
		return false, newError(LineTooLong, lr.n, nil)
	case errors.Is(err, io.EOF):
		if len(raw) == 0 {
			return false, nil
		}
		lr.n++
		return false, newError(LineTooLong, lr.n, errors.New("missing line terminator"))
	default:
		return false, newError(MappingFileNotFound, 0, fmt.Errorf("read: %w", err))
	}

	lr.n++
	raw = raw[:len(raw)-1]
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if len(raw) > MaxLineLength {
		return false, newError(LineTooLong, lr.n, nil)
	}
	lr.text = raw
	return true, nil
}

// line is the 1-based number of the current line.
func (lr *lineReader) line() int {
	return lr.n
}
