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

// Package mapper resolves card identifiers to media filenames using a
// line-oriented text database.
//
// The database is scanned from disk on every lookup and never loaded into
// memory. At most one line is buffered at a time, so memory use does not
// depend on the size of the file.
package mapper

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"go.uber.org/zap"
)

// DefaultFile is the database name relative to the media root.
const DefaultFile = "mapping.txt"

// Observer is told the outcome and duration of every Resolve call.
type Observer func(code Code, elapsed time.Duration)

// Option configures a Mapper.
type Option func(*Mapper)

// WithFile sets the database path inside the file system.
func WithFile(name string) Option {
	return func(m *Mapper) {
		m.file = strings.TrimPrefix(name, "/")
	}
}

// WithVerifyReferenced makes Resolve and Check confirm that matched
// filenames exist in the file system.
func WithVerifyReferenced(verify bool) Option {
	return func(m *Mapper) {
		m.verify = verify
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver registers a callback for resolution metrics.
func WithObserver(o Observer) Option {
	return func(m *Mapper) {
		m.observer = o
	}
}

// Mapper looks up filenames for cards. Filenames in the database are
// absolute paths within fsys.
type Mapper struct {
	fsys     fs.FS
	logger   *zap.Logger
	observer Observer
	file     string
	verify   bool
}

// New creates a Mapper reading the database from fsys.
func New(fsys fs.FS, opts ...Option) *Mapper {
	m := &Mapper{
		fsys:   fsys,
		file:   DefaultFile,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// File returns the database path inside the file system.
func (m *Mapper) File() string {
	return m.file
}

// Resolve returns the filename mapped to id. Exactly one of the results is
// meaningful: on failure the error is an *Error describing why.
//
// The first valid line naming the card wins. Malformed lines are skipped;
// if no line matches, the IDNotFound error carries the first malformed line
// seen as its Err. An overlong line ends the scan.
func (m *Mapper) Resolve(id card.Identifier) (string, error) {
	start := time.Now()
	key := id.Key()

	name, err := m.resolve(key)

	code, _ := CodeOf(err)
	if m.observer != nil {
		m.observer(code, time.Since(start))
	}
	switch {
	case err == nil:
		m.logger.Debug("card resolved", zap.String("uid", key), zap.String("file", name))
	case code == IDNotFound:
		m.logger.Info("card not mapped", zap.String("uid", key), zap.Error(errors.Unwrap(err)))
	default:
		m.logger.Warn("card resolution failed", zap.String("uid", key), zap.Error(err))
	}
	return name, err
}

func (m *Mapper) resolve(key string) (string, error) {
	f, err := m.fsys.Open(m.file)
	if err != nil {
		return "", newError(MappingFileNotFound, 0, err)
	}
	defer func() { _ = f.Close() }()

	var firstBad *Error
	lr := newLineReader(f)
	for {
		ok, err := lr.next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}

		entry, code := parseLine(lr.text)
		if code != OK {
			if firstBad == nil {
				firstBad = newError(code, lr.line(), nil)
			}
			m.logger.Debug("skipping malformed line",
				zap.Int("line", lr.line()), zap.Stringer("code", code))
			continue
		}
		if !strings.EqualFold(entry.ID, key) {
			continue
		}

		if m.verify {
			if err := m.verifyReferenced(entry.Filename, lr.line()); err != nil {
				return "", err
			}
		}
		return entry.Filename, nil
	}

	if firstBad != nil {
		return "", newError(IDNotFound, 0, firstBad)
	}
	return "", newError(IDNotFound, 0, nil)
}

func (m *Mapper) verifyReferenced(filename string, line int) error {
	name := strings.TrimPrefix(filename, "/")
	if !fs.ValidPath(name) {
		return newError(ReferencedFileNotFound, line, fmt.Errorf("invalid path %q", filename))
	}
	info, err := fs.Stat(m.fsys, name)
	if err != nil {
		return newError(ReferencedFileNotFound, line, err)
	}
	if info.IsDir() {
		return newError(ReferencedFileNotFound, line, fmt.Errorf("%s is a directory", filename))
	}
	return nil
}

// Check validates the whole database and returns the first problem found,
// or nil when every line is well formed.
func (m *Mapper) Check() error {
	f, err := m.fsys.Open(m.file)
	if err != nil {
		return newError(MappingFileNotFound, 0, err)
	}
	defer func() { _ = f.Close() }()

	lr := newLineReader(f)
	for {
		ok, err := lr.next()
		if err != nil || !ok {
			return err
		}
		entry, code := parseLine(lr.text)
		if code != OK {
			return newError(code, lr.line(), nil)
		}
		if m.verify {
			if err := m.verifyReferenced(entry.Filename, lr.line()); err != nil {
				return err
			}
		}
	}
}

// ErrStopWalk can be returned from a Walk callback to end the walk early
// without an error.
var ErrStopWalk = errors.New("stop walk")

// Walk calls fn for every valid entry in file order. Malformed lines are
// skipped; scan-fatal problems are returned.
func (m *Mapper) Walk(fn func(Entry) error) error {
	f, err := m.fsys.Open(m.file)
	if err != nil {
		return newError(MappingFileNotFound, 0, err)
	}
	defer func() { _ = f.Close() }()

	lr := newLineReader(f)
	for {
		ok, err := lr.next()
		if err != nil || !ok {
			return err
		}
		entry, code := parseLine(lr.text)
		if code != OK {
			continue
		}
		if err := fn(entry); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
}
