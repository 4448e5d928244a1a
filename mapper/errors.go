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
	"errors"
	"fmt"
)

// Code is the outcome of a resolution or validation attempt.
type Code int

const (
	// OK means the lookup produced a filename.
	OK Code = iota
	// IDNotFound means the database is readable but has no line for the card.
	IDNotFound
	// MappingFileNotFound means the database could not be opened or read.
	MappingFileNotFound
	// ReferencedFileNotFound means the matched filename does not exist on
	// the media storage. Only reported when verification is enabled.
	ReferencedFileNotFound
	// LineTooLong means a line exceeds the maximum length or the last line
	// has no terminator.
	LineTooLong
	// LineTooShort means a line cannot hold an identifier, a separator and
	// at least one filename character.
	LineTooShort
	// MalformedCardID means the identifier segment is not eight hex digits.
	MalformedCardID
	// MalformedLineSyntax means the separator is missing or misplaced.
	MalformedLineSyntax
	// MalformedFileName means the filename does not start with "/" or is
	// too long.
	MalformedFileName
)

var codeNames = [...]string{
	OK:                     "OK",
	IDNotFound:             "ID_NOT_FOUND",
	MappingFileNotFound:    "MAPPING_FILE_NOT_FOUND",
	ReferencedFileNotFound: "REFERENCED_FILE_NOT_FOUND",
	LineTooLong:            "LINE_TOO_LONG",
	LineTooShort:           "LINE_TOO_SHORT",
	MalformedCardID:        "MALFORMED_CARD_ID",
	MalformedLineSyntax:    "MALFORMED_LINE_SYNTAX",
	MalformedFileName:      "MALFORMED_FILE_NAME",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Fatal reports whether the code aborts a scan. Line framing is ambiguous
// after an overlong line, and nothing can be scanned without the file.
func (c Code) Fatal() bool {
	return c == LineTooLong || c == MappingFileNotFound
}

// Malformed reports whether the code describes a single bad line.
func (c Code) Malformed() bool {
	switch c {
	case LineTooLong, LineTooShort, MalformedCardID, MalformedLineSyntax, MalformedFileName:
		return true
	default:
		return false
	}
}

// Error is a failed resolution. Line is the 1-based line number for
// line-level codes and zero otherwise.
type Error struct {
	Err  error
	Code Code
	Line int
}

func (e *Error) Error() string {
	msg := "mapper: " + e.Code.String()
	if e.Line > 0 {
		msg = fmt.Sprintf("mapper: line %d: %s", e.Line, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so callers can test against the
// sentinels below regardless of line number or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrIDNotFound             = &Error{Code: IDNotFound}
	ErrMappingFileNotFound    = &Error{Code: MappingFileNotFound}
	ErrReferencedFileNotFound = &Error{Code: ReferencedFileNotFound}
	ErrLineTooLong            = &Error{Code: LineTooLong}
	ErrLineTooShort           = &Error{Code: LineTooShort}
	ErrMalformedCardID        = &Error{Code: MalformedCardID}
	ErrMalformedLineSyntax    = &Error{Code: MalformedLineSyntax}
	ErrMalformedFileName      = &Error{Code: MalformedFileName}
)

// ErrEntryExists is returned by Store.Add when the card is already mapped.
var ErrEntryExists = errors.New("card already mapped")

// CodeOf extracts the Code carried by err. A nil error is OK.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return OK, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

func newError(code Code, line int, err error) *Error {
	return &Error{Code: code, Line: line, Err: err}
}
