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
	"context"

	"go.uber.org/zap"
)

// DefaultRemovalThreshold is the number of consecutive missed polls that
// confirm a card removal.
const DefaultRemovalThreshold = 2

// Reader is the proximity reader as seen by the Monitor.
type Reader interface {
	// CardPresent reports whether a card answered in the field this tick.
	CardPresent(ctx context.Context) (bool, error)

	// ReadIdentifier returns the UID of the card found by CardPresent. An
	// error means the card was there but the anti-collision/select exchange
	// did not produce a usable UID.
	ReadIdentifier(ctx context.Context) (Identifier, error)
}

// Classifier decides whether a freshly placed card is a credential card.
// It returns the decoded credentials and true for credential cards.
type Classifier interface {
	Classify(ctx context.Context, id Identifier) (*Credentials, bool)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, id Identifier) (*Credentials, bool)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, id Identifier) (*Credentials, bool) {
	return f(ctx, id)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClassifier sets the classifier used for new cards. Without one every
// card is a media card.
func WithClassifier(c Classifier) Option {
	return func(m *Monitor) {
		m.classifier = c
	}
}

// WithRemovalThreshold overrides DefaultRemovalThreshold. Values below 1 are
// ignored.
func WithRemovalThreshold(n int) Option {
	return func(m *Monitor) {
		if n >= 1 {
			m.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor turns raw reader observations into debounced card events.
//
// A new card is reported immediately. Removal is only confirmed after the
// threshold of consecutive missed polls, so a single dropout while a card
// sits on the reader does not stop playback.
//
// Monitor is not safe for concurrent use; it is driven by one control loop.
type Monitor struct {
	reader     Reader
	classifier Classifier
	logger     *zap.Logger
	current    Identifier
	state      State
	threshold  int
	misses     int
}

// NewMonitor creates a Monitor with no card present.
func NewMonitor(reader Reader, opts ...Option) *Monitor {
	m := &Monitor{
		reader:    reader,
		logger:    zap.NewNop(),
		threshold: DefaultRemovalThreshold,
		state:     StateAbsent,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the last confirmed card, or the zero Identifier.
func (m *Monitor) Current() Identifier {
	return m.current
}

// State returns the debounce state.
func (m *Monitor) State() State {
	return m.state
}

// Reset forgets the current card without emitting an event.
func (m *Monitor) Reset() {
	m.current = Identifier{}
	m.state = StateAbsent
	m.misses = 0
}

// Poll samples the reader once and returns exactly one event.
func (m *Monitor) Poll(ctx context.Context) Event {
	present, err := m.reader.CardPresent(ctx)
	if err != nil {
		m.logger.Debug("presence check failed, counting as empty field", zap.Error(err))
		present = false
	}
	if !present {
		return m.miss()
	}

	id, err := m.reader.ReadIdentifier(ctx)
	if err != nil {
		m.logger.Warn("error reading card", zap.Error(err))
		m.state = StateAbsent
		m.misses = 0
		return Event{Kind: FaultyCard}
	}

	// A fault leaves current in place, so the same card read cleanly
	// afterwards is not announced again.
	if !m.current.IsZero() && id == m.current {
		m.state = StatePresent
		m.misses = 0
		return Event{Kind: NoChange}
	}

	return m.newCard(ctx, id)
}

func (m *Monitor) miss() Event {
	if !m.state.holdsCard() {
		return Event{Kind: NoChange}
	}

	m.misses++
	if m.misses < m.threshold {
		m.state = StatePendingRemoval
		m.logger.Debug("card missed poll",
			zap.String("uid", m.current.String()),
			zap.Int("misses", m.misses))
		return Event{Kind: NoChange}
	}

	m.logger.Info("card removed", zap.String("uid", m.current.String()))
	m.Reset()
	return Event{Kind: RemovedCard}
}

func (m *Monitor) newCard(ctx context.Context, id Identifier) Event {
	m.current = id
	m.state = StatePresent
	m.misses = 0

	if m.classifier != nil {
		if creds, ok := m.classifier.Classify(ctx, id); ok && creds != nil {
			m.logger.Info("new credential card detected", zap.String("uid", id.String()))
			return Event{Kind: NewCredentialCard, ID: id, Credentials: creds}
		}
	}

	m.logger.Info("new card detected", zap.String("uid", id.String()))
	return Event{Kind: NewMediaCard, ID: id}
}
