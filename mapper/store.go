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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store edits a database file on disk. Every edit streams the old file into
// a temporary sibling and renames it over the original, so readers never see
// a partial file and the database is never held in memory.
//
// Store serialises its own edits. Lines it does not touch are copied through
// unchanged apart from line terminators, which are written as "\n".
type Store struct {
	logger *zap.Logger
	path   string
	mu     sync.Mutex
}

// NewStore returns a Store for the database at path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Add appends a mapping. It fails with ErrEntryExists if a valid line
// already maps the card.
func (s *Store) Add(id, filename string) error {
	entry, err := NewEntry(id, filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.rewrite(true, func(text []byte, e Entry, valid bool) ([]byte, bool, error) {
		if valid && strings.EqualFold(e.ID, entry.ID) {
			return nil, false, fmt.Errorf("%w: %s", ErrEntryExists, entry.ID)
		}
		return text, true, nil
	}, func() string { return entry.String() })
	if err != nil {
		return err
	}

	s.logger.Info("mapping added", zap.String("uid", entry.ID), zap.String("file", entry.Filename))
	return nil
}

// Put maps the card to filename, replacing the first existing mapping and
// dropping later duplicates. It reports whether a new line was appended.
func (s *Store) Put(id, filename string) (bool, error) {
	entry, err := NewEntry(id, filename)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	err = s.rewrite(true, func(text []byte, e Entry, valid bool) ([]byte, bool, error) {
		if !valid || !strings.EqualFold(e.ID, entry.ID) {
			return text, true, nil
		}
		if replaced {
			return nil, false, nil
		}
		replaced = true
		return []byte(entry.String()), true, nil
	}, func() string {
		if replaced {
			return ""
		}
		return entry.String()
	})
	if err != nil {
		return false, err
	}

	s.logger.Info("mapping stored",
		zap.String("uid", entry.ID),
		zap.String("file", entry.Filename),
		zap.Bool("created", !replaced))
	return !replaced, nil
}

// Delete removes every valid line mapping the card. It returns an error
// matching ErrIDNotFound if there was none.
func (s *Store) Delete(id string) error {
	if len(id) != IDLength {
		return newError(MalformedCardID, 0, nil)
	}
	for i := range len(id) {
		if !isHex(id[i]) {
			return newError(MalformedCardID, 0, nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.rewrite(false, func(text []byte, e Entry, valid bool) ([]byte, bool, error) {
		if valid && strings.EqualFold(e.ID, id) {
			removed++
			return nil, false, nil
		}
		return text, true, nil
	}, nil)
	if err != nil {
		return err
	}
	if removed == 0 {
		return newError(IDNotFound, 0, nil)
	}

	s.logger.Info("mapping deleted", zap.String("uid", strings.ToUpper(id)), zap.Int("lines", removed))
	return nil
}

// lineEdit returns the replacement for an existing line and whether to keep
// it. A non-nil error abandons the edit and leaves the file untouched.
type lineEdit func(text []byte, e Entry, valid bool) ([]byte, bool, error)

func (s *Store) rewrite(create bool, edit lineEdit, tail func() string) (err error) {
	src, err := os.Open(s.path)
	switch {
	case err == nil:
		defer func() { _ = src.Close() }()
	case errors.Is(err, fs.ErrNotExist) && create:
		// start an empty database
	default:
		return newError(MappingFileNotFound, 0, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if src != nil {
		lr := newLineReader(src)
		for {
			ok, err := lr.next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			e, code := parseLine(lr.text)
			out, keep, err := edit(lr.text, e, code == OK)
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
			if _, err := w.Write(out); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
		}
	}
	if tail != nil {
		if extra := tail(); extra != "" {
			if _, err := w.WriteString(extra + "\n"); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
