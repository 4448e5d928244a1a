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

package admin

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxPathLen bounds media paths, matching what the storage card accepts.
const maxPathLen = 255

var (
	errInvalidPath = errors.New("invalid media path")
	errRootPath    = errors.New("media root cannot be modified")
)

// FileInfo describes one entry of a media directory.
type FileInfo struct {
	Modified time.Time `json:"modified"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Dir      bool      `json:"dir"`
}

// mediaPath maps the wildcard of a file route to a path below the media
// root. It returns the slash separated relative path too, "." for the root.
func (s *Server) mediaPath(r *http.Request) (string, string, error) {
	raw := chi.URLParam(r, "*")
	if len(raw) > maxPathLen {
		return "", "", fmt.Errorf("%w: longer than %d bytes", errInvalidPath, maxPathLen)
	}
	rel := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if rel == "" {
		rel = "."
	}
	if !fs.ValidPath(rel) {
		return "", "", fmt.Errorf("%w: %q", errInvalidPath, raw)
	}
	return filepath.Join(s.cfg.MediaRoot, filepath.FromSlash(rel)), rel, nil
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	full, _, err := s.mediaPath(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		s.writeError(w, r, fileStatus(err), err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if !info.IsDir() {
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}

	entries, err := f.ReadDir(-1)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	list := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, FileInfo{Name: e.Name(), Size: fi.Size(), Dir: e.IsDir(), Modified: fi.ModTime()})
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteFile removes a file or an empty directory.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	full, rel, err := s.mediaPath(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if rel == "." {
		s.writeError(w, r, http.StatusForbidden, errRootPath)
		return
	}

	if err := os.Remove(full); err != nil {
		s.writeError(w, r, fileStatus(err), err)
		return
	}
	s.logger.Info("media file deleted", zap.String("file", rel))
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadFile stores the multipart field "file" at the route path.
// The upload is streamed into a temporary file next to the target and
// renamed into place once complete.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	full, rel, err := s.mediaPath(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if rel == "." {
		s.writeError(w, r, http.StatusForbidden, errRootPath)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("expected multipart form: %w", err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, http.StatusBadRequest, errors.New(`missing form field "file"`))
			return
		}
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		n, err := writeFile(full, part)
		_ = part.Close()
		if err != nil {
			status := http.StatusInternalServerError
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			s.writeError(w, r, status, err)
			return
		}

		s.logger.Info("media file uploaded", zap.String("file", rel), zap.Int64("bytes", n))
		writeJSON(w, http.StatusCreated, FileInfo{Name: path.Base(rel), Size: n, Modified: time.Now()})
		return
	}
}

func writeFile(name string, src io.Reader) (n int64, err error) {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+"-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, src); err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return 0, fmt.Errorf("chmod upload: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close upload: %w", err)
	}
	if err = os.Rename(tmp.Name(), name); err != nil {
		return 0, fmt.Errorf("rename upload: %w", err)
	}
	return n, nil
}

func fileStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrExist), isNotEmpty(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
