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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ZaparooProject/tagbox/mapper"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CurrentCardResponse describes the card in the field.
type CurrentCardResponse struct {
	ID      string `json:"id,omitempty"`
	UID     string `json:"uid,omitempty"`
	Present bool   `json:"present"`
}

// CardMapping is one mapping database entry.
type CardMapping struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

type mappingRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleCurrentCard(w http.ResponseWriter, _ *http.Request) {
	var resp CurrentCardResponse
	if s.cfg.Current != nil {
		if id := s.cfg.Current.Current(); !id.IsZero() {
			resp = CurrentCardResponse{ID: id.Key(), UID: id.String(), Present: true}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListCards streams the valid mappings as a JSON array so the
// database never has to fit in memory.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Mapper == nil {
		s.writeError(w, r, http.StatusNotFound, mapper.ErrMappingFileNotFound)
		return
	}

	enc := json.NewEncoder(w)
	started := false
	err := s.cfg.Mapper.Walk(func(e mapper.Entry) error {
		sep := []byte{','}
		if !started {
			w.Header().Set("Content-Type", "application/json")
			sep = []byte{'['}
			started = true
		}
		if _, err := w.Write(sep); err != nil {
			return err
		}
		return enc.Encode(CardMapping(e))
	})

	switch {
	case err != nil && !started:
		s.writeError(w, r, mappingStatus(err), err)
	case err != nil:
		// The status line is gone; the unterminated array tells the client.
		s.logger.Warn("card listing aborted", zap.Error(err))
	case !started:
		writeJSON(w, http.StatusOK, []CardMapping{})
	default:
		_, _ = w.Write([]byte{']'})
	}
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := s.decodeMapping(w, r)
	if !ok {
		return
	}

	if err := s.cfg.Store.Add(id, req.Filename); err != nil {
		s.writeError(w, r, mappingStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, CardMapping{ID: canonicalID(id), Filename: req.Filename})
}

func (s *Server) handlePutCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := s.decodeMapping(w, r)
	if !ok {
		return
	}

	created, err := s.cfg.Store.Put(id, req.Filename)
	if err != nil {
		s.writeError(w, r, mappingStatus(err), err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, CardMapping{ID: canonicalID(id), Filename: req.Filename})
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, r, http.StatusNotFound, mapper.ErrMappingFileNotFound)
		return
	}
	if err := s.cfg.Store.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, mappingStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeMapping(w http.ResponseWriter, r *http.Request) (mappingRequest, bool) {
	var req mappingRequest
	if s.cfg.Store == nil {
		s.writeError(w, r, http.StatusNotFound, mapper.ErrMappingFileNotFound)
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid mapping body: %w", err))
		return req, false
	}
	return req, true
}

func mappingStatus(err error) int {
	if errors.Is(err, mapper.ErrEntryExists) {
		return http.StatusConflict
	}
	code, ok := mapper.CodeOf(err)
	switch {
	case !ok:
		return http.StatusInternalServerError
	case code == mapper.IDNotFound, code == mapper.MappingFileNotFound:
		return http.StatusNotFound
	case code.Malformed():
		// Either the request is invalid or the file is corrupt; both are
		// reported with the line code.
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func canonicalID(id string) string {
	return strings.ToUpper(id)
}
