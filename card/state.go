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

// State is the debounce state of the card slot.
type State int

const (
	// StateAbsent means no card is confirmed in the field.
	StateAbsent State = iota
	// StatePresent means the current card was seen on the last poll.
	StatePresent
	// StatePendingRemoval means the current card has missed at least one
	// poll but removal is not yet confirmed.
	StatePendingRemoval
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	case StatePendingRemoval:
		return "pending_removal"
	default:
		return "unknown"
	}
}

// holdsCard reports whether the slot still owns a confirmed card.
func (s State) holdsCard() bool {
	return s == StatePresent || s == StatePendingRemoval
}
