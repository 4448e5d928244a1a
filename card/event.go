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

package card

import (
	"errors"
	"fmt"
	"strings"
)

// EventKind classifies the outcome of a single Monitor poll.
type EventKind int

const (
	// NoChange means nothing the caller needs to act on happened this tick.
	NoChange EventKind = iota
	// NewMediaCard means a card that is not a credential card was placed.
	NewMediaCard
	// NewCredentialCard means an admin card carrying network credentials was placed.
	NewCredentialCard
	// RemovedCard means the previous card is confirmed gone.
	RemovedCard
	// FaultyCard means a card was in the field but its UID could not be read.
	FaultyCard
)

func (k EventKind) String() string {
	switch k {
	case NoChange:
		return "no_change"
	case NewMediaCard:
		return "new_media_card"
	case NewCredentialCard:
		return "new_credential_card"
	case RemovedCard:
		return "removed_card"
	case FaultyCard:
		return "faulty_card"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted once per poll. ID is set for new-card events and
// Credentials only for NewCredentialCard.
type Event struct {
	Credentials *Credentials
	ID          Identifier
	Kind        EventKind
}

// Credential field limits (802.11 SSID and WPA passphrase).
const (
	MaxSSIDLen       = 32
	MaxPassphraseLen = 63
)

var (
	ErrEmptySSID        = errors.New("empty SSID")
	ErrSSIDTooLong      = errors.New("SSID too long")
	ErrPassphraseLength = errors.New("passphrase too long")
	ErrControlCharacter = errors.New("control character in credential field")
)

// Credentials are the network settings carried by an admin card.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Validate checks the field lengths an admin card is allowed to carry.
func (c Credentials) Validate() error {
	switch {
	case c.SSID == "":
		return ErrEmptySSID
	case len(c.SSID) > MaxSSIDLen:
		return fmt.Errorf("%w: %d bytes, max %d", ErrSSIDTooLong, len(c.SSID), MaxSSIDLen)
	case len(c.Passphrase) > MaxPassphraseLen:
		return fmt.Errorf("%w: %d bytes, max %d", ErrPassphraseLength, len(c.Passphrase), MaxPassphraseLen)
	case strings.ContainsAny(c.SSID, "\r\n"), strings.ContainsAny(c.Passphrase, "\r\n"):
		return ErrControlCharacter
	}
	return nil
}

// String never includes the passphrase.
func (c Credentials) String() string {
	return fmt.Sprintf("ssid=%q passphrase=<%d bytes>", c.SSID, len(c.Passphrase))
}
