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
	"net/http"
)

var errStorageUnsupported = errors.New("storage statistics not supported on this platform")

// StorageResponse reports media storage usage in bytes.
type StorageResponse struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
	Used  uint64 `json:"used"`
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	st, err := storageUsage(s.cfg.MediaRoot)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errStorageUnsupported) {
			status = http.StatusNotImplemented
		}
		s.writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
