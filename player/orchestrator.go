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

// Package player ties card events to playback. Each tick polls the card
// monitor once and reacts to the resulting event: media cards are resolved
// through the mapping database and played, credential cards switch the
// player into maintenance mode.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"go.uber.org/zap"
)

// DefaultInterval is the tick period of Run.
const DefaultInterval = 100 * time.Millisecond

// Mode is the top-level operating mode.
type Mode int32

const (
	// ModePlayer acts on card events.
	ModePlayer Mode = iota
	// ModeAdmin runs maintenance and only tracks the current card.
	ModeAdmin
)

func (m Mode) String() string {
	switch m {
	case ModePlayer:
		return "player"
	case ModeAdmin:
		return "admin"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Status is shown on the indicator.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusMappingError
	StatusPlaybackError
	StatusFaultyCard
	StatusMaintenance
	StatusMaintenanceError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusMappingError:
		return "mapping_error"
	case StatusPlaybackError:
		return "playback_error"
	case StatusFaultyCard:
		return "faulty_card"
	case StatusMaintenance:
		return "maintenance"
	case StatusMaintenanceError:
		return "maintenance_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Poller produces one card event per call. *card.Monitor implements it.
type Poller interface {
	Poll(ctx context.Context) card.Event
	Current() card.Identifier
}

// Resolver maps a card to a media filename. *mapper.Mapper implements it.
type Resolver interface {
	Resolve(id card.Identifier) (string, error)
}

// Playback plays one file at a time.
type Playback interface {
	Play(filename string) error
	Stop()
}

// Maintenance joins the network described by a credential card and serves
// the administrative API until shut down.
type Maintenance interface {
	Start(ctx context.Context, creds card.Credentials) error
	Shutdown(ctx context.Context) error
}

// Button reports presses of the maintenance exit button.
type Button interface {
	Pressed() bool
}

// Indicator shows the player status, typically on an LED.
type Indicator interface {
	Status(s Status)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaintenance enables credential cards. Maintenance mode is only
// entered when a button is also configured, since the button is the only
// way back to player mode.
func WithMaintenance(m Maintenance) Option {
	return func(o *Orchestrator) {
		o.maintenance = m
	}
}

// WithButton sets the button that leaves maintenance mode.
func WithButton(b Button) Option {
	return func(o *Orchestrator) {
		o.button = b
	}
}

// WithIndicator sets the status indicator.
func WithIndicator(i Indicator) Option {
	return func(o *Orchestrator) {
		o.indicator = i
	}
}

// WithInterval sets the tick period of Run.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithEventObserver registers fn to see every polled event.
func WithEventObserver(fn func(card.Event)) Option {
	return func(o *Orchestrator) {
		o.observe = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator runs the player control loop. Tick and Run must be called
// from one goroutine. Mode and Current are safe for concurrent use.
type Orchestrator struct {
	poller      Poller
	resolver    Resolver
	playback    Playback
	maintenance Maintenance
	button      Button
	indicator   Indicator
	observe     func(card.Event)
	logger      *zap.Logger
	current     atomic.Value
	interval    time.Duration
	mode        atomic.Int32
}

// New creates an Orchestrator in player mode.
func New(poller Poller, resolver Resolver, playback Playback, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		poller:   poller,
		resolver: resolver,
		playback: playback,
		logger:   zap.NewNop(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.current.Store(card.Identifier{})
	return o
}

// Mode returns the operating mode.
func (o *Orchestrator) Mode() Mode {
	return Mode(o.mode.Load())
}

// Current returns the card in the field as of the last tick.
func (o *Orchestrator) Current() card.Identifier {
	id, _ := o.current.Load().(card.Identifier)
	return id
}

// Run ticks until ctx is done. On return playback is stopped and a
// running maintenance session is shut down.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.logger.Info("player started", zap.Duration("interval", o.interval))
	o.indicate(StatusIdle)

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick polls the card once and acts on the event, which it returns.
func (o *Orchestrator) Tick(ctx context.Context) card.Event {
	ev := o.poller.Poll(ctx)
	o.current.Store(o.poller.Current())
	if o.observe != nil {
		o.observe(ev)
	}

	if o.Mode() == ModeAdmin {
		if o.button != nil && o.button.Pressed() {
			o.leaveMaintenance(ctx)
		}
		return ev
	}

	switch ev.Kind {
	case card.NewMediaCard:
		o.play(ev.ID)
	case card.NewCredentialCard:
		if ev.Credentials != nil {
			o.enterMaintenance(ctx, *ev.Credentials)
		}
	case card.RemovedCard:
		o.playback.Stop()
		o.indicate(StatusIdle)
	case card.FaultyCard:
		o.playback.Stop()
		o.indicate(StatusFaultyCard)
	case card.NoChange:
	}
	return ev
}

func (o *Orchestrator) play(id card.Identifier) {
	filename, err := o.resolver.Resolve(id)
	if err != nil {
		// The mapper logs the cause.
		o.playback.Stop()
		o.indicate(StatusMappingError)
		return
	}

	if err := o.playback.Play(filename); err != nil {
		o.logger.Error("playback failed", zap.String("uid", id.String()), zap.String("file", filename), zap.Error(err))
		o.indicate(StatusPlaybackError)
		return
	}
	o.indicate(StatusPlaying)
}

func (o *Orchestrator) enterMaintenance(ctx context.Context, creds card.Credentials) {
	if o.maintenance == nil {
		o.logger.Warn("credential card ignored, maintenance is not configured")
		return
	}
	if o.button == nil {
		o.logger.Warn("credential card ignored, no button to leave maintenance mode")
		return
	}

	o.playback.Stop()
	if err := o.maintenance.Start(ctx, creds); err != nil {
		o.logger.Error("maintenance start failed", zap.String("ssid", creds.SSID), zap.Error(err))
		o.indicate(StatusMaintenanceError)
		return
	}

	o.mode.Store(int32(ModeAdmin))
	o.logger.Info("entered maintenance mode", zap.String("ssid", creds.SSID))
	o.indicate(StatusMaintenance)
}

func (o *Orchestrator) leaveMaintenance(ctx context.Context) {
	if err := o.maintenance.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("maintenance shutdown failed", zap.Error(err))
	}
	o.mode.Store(int32(ModePlayer))
	o.logger.Info("left maintenance mode")
	o.indicate(StatusIdle)
}

func (o *Orchestrator) shutdown() {
	o.playback.Stop()
	if o.Mode() == ModeAdmin {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.leaveMaintenance(ctx)
	}
	o.logger.Info("player stopped")
}

func (o *Orchestrator) indicate(s Status) {
	if o.indicator != nil {
		o.indicator.Status(s)
	}
}
