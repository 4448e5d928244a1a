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

// Package credential recognises admin cards and extracts the network
// credentials stored on them.
//
// A credential card is a MIFARE Classic card whose data blocks, starting at
// a fixed sector, hold an NFC Forum NDEF message. The first text record
// carries "SSID\npassphrase"; a Wi-Fi Simple Configuration record is also
// accepted.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/hsanjuan/go-ndef"
	"github.com/hsanjuan/go-ndef/types/wkt/text"
	"go.uber.org/zap"
)

var (
	// ErrNoNDEF means the memory range holds no NDEF message TLV.
	ErrNoNDEF = errors.New("no NDEF message")
	// ErrNoCredentialRecord means the message has no text or WSC record.
	ErrNoCredentialRecord = errors.New("no credential record")
	// ErrMalformedRecord means the credential record could not be split
	// into network name and passphrase.
	ErrMalformedRecord = errors.New("malformed credential record")
)

// SectorReader reads raw card memory. count data blocks are read starting
// at block within sector, continuing into following sectors and skipping
// sector trailers.
type SectorReader interface {
	ReadSector(ctx context.Context, sector, block, count uint8) ([]byte, error)
}

// Range is the card memory area that holds the credential record.
type Range struct {
	Sector uint8
	Block  uint8
	Blocks uint8
}

// DefaultRange covers the data blocks of sectors 1 to 3 (144 bytes), enough
// for a 32 byte network name and a 63 byte passphrase with NDEF overhead.
var DefaultRange = Range{Sector: 1, Block: 0, Blocks: 9}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRange overrides DefaultRange.
func WithRange(r Range) Option {
	return func(e *Extractor) {
		if r.Blocks > 0 {
			e.rng = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Extractor classifies new cards. It makes a single read attempt per card;
// any failure means the card is treated as a media card.
type Extractor struct {
	reader SectorReader
	logger *zap.Logger
	rng    Range
}

// NewExtractor creates an Extractor reading through r.
func NewExtractor(r SectorReader, opts ...Option) *Extractor {
	e := &Extractor{
		reader: r,
		rng:    DefaultRange,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify implements card.Classifier.
func (e *Extractor) Classify(ctx context.Context, id card.Identifier) (*card.Credentials, bool) {
	creds, err := e.Extract(ctx)
	if err != nil {
		e.logger.Debug("not a credential card",
			zap.String("uid", id.String()),
			zap.Uint8("sector", e.rng.Sector),
			zap.Error(err))
		return nil, false
	}
	e.logger.Info("credential card read",
		zap.String("uid", id.String()),
		zap.String("ssid", creds.SSID))
	return &creds, true
}

// Extract reads the configured range and decodes it.
func (e *Extractor) Extract(ctx context.Context) (card.Credentials, error) {
	data, err := e.reader.ReadSector(ctx, e.rng.Sector, e.rng.Block, e.rng.Blocks)
	if err != nil {
		return card.Credentials{}, fmt.Errorf("read sector %d: %w", e.rng.Sector, err)
	}
	return Decode(data)
}

// Decode parses a tag memory dump into credentials. The dump must start at
// the first TLV of the NDEF area.
func Decode(data []byte) (card.Credentials, error) {
	msgBytes, found, err := findNDEFTLV(data)
	if err != nil {
		return card.Credentials{}, fmt.Errorf("%w: %w", ErrNoNDEF, err)
	}
	if !found || len(msgBytes) == 0 {
		return card.Credentials{}, ErrNoNDEF
	}

	var msg ndef.Message
	if _, err := msg.Unmarshal(msgBytes); err != nil {
		return card.Credentials{}, fmt.Errorf("%w: %w", ErrNoNDEF, err)
	}

	for _, rec := range msg.Records {
		creds, ok, err := decodeRecord(rec)
		if err != nil {
			return card.Credentials{}, err
		}
		if !ok {
			continue
		}
		if err := creds.Validate(); err != nil {
			return card.Credentials{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		return creds, nil
	}
	return card.Credentials{}, ErrNoCredentialRecord
}

// decodeRecord reports ok=false for records that cannot carry credentials.
func decodeRecord(rec *ndef.Record) (card.Credentials, bool, error) {
	switch {
	case rec.TNF() == ndef.NFCForumWellKnownType && rec.Type() == "T":
		payload, err := rec.Payload()
		if err != nil {
			return card.Credentials{}, false, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		creds, err := splitText(recordText(payload))
		return creds, true, err

	case rec.TNF() == ndef.MediaType && strings.EqualFold(rec.Type(), WSCMediaType):
		payload, err := rec.Payload()
		if err != nil {
			return card.Credentials{}, false, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		creds, err := decodeWSC(payload.Marshal())
		if err != nil {
			return card.Credentials{}, true, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		return creds, true, nil
	}
	return card.Credentials{}, false, nil
}

// recordText returns the text of a well-known text record payload.
func recordText(p ndef.RecordPayload) string {
	if tp, ok := p.(*text.Payload); ok {
		return tp.Text
	}
	// Status byte, language code, then UTF-8 text.
	raw := p.Marshal()
	if len(raw) == 0 {
		return ""
	}
	skip := 1 + int(raw[0]&0x3F)
	if skip > len(raw) {
		return ""
	}
	return string(raw[skip:])
}

// splitText separates "SSID\npassphrase". A tab is accepted in place of the
// newline; CRLF line endings and a trailing newline are tolerated.
func splitText(s string) (card.Credentials, error) {
	sep := strings.IndexByte(s, '\n')
	if sep < 0 {
		sep = strings.IndexByte(s, '\t')
	}
	if sep < 0 {
		return card.Credentials{}, fmt.Errorf("%w: no field delimiter", ErrMalformedRecord)
	}
	ssid := strings.TrimSuffix(s[:sep], "\r")
	pass := strings.TrimRight(s[sep+1:], "\r\n")
	return card.Credentials{SSID: ssid, Passphrase: pass}, nil
}
