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

// Package gpiobutton reads an active-low push button on a GPIO pin.
package gpiobutton

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultDebounce is the minimum time between two reported presses.
const DefaultDebounce = 50 * time.Millisecond

// Pin is the part of gpio.PinIn the button needs.
type Pin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Button detects presses by sampling. A press is a high to low transition
// seen between two calls to Pressed.
type Button struct {
	pin      Pin
	now      func() time.Time
	last     time.Time
	debounce time.Duration
	mu       sync.Mutex
	level    gpio.Level
}

// Open looks up the named pin, for example "GPIO17", and configures it as
// an input with pull-up.
func Open(name string, debounce time.Duration) (*Button, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return New(pin, debounce)
}

// New configures pin and returns a button on it.
func New(pin Pin, debounce time.Duration) (*Button, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure button pin: %w", err)
	}
	return &Button{
		pin:      pin,
		now:      time.Now,
		debounce: debounce,
		level:    pin.Read(),
	}, nil
}

// Pressed reports whether the button went down since the last call.
func (b *Button) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	level := b.pin.Read()
	prev := b.level
	b.level = level
	if prev != gpio.High || level != gpio.Low {
		return false
	}

	now := b.now()
	if !b.last.IsZero() && now.Sub(b.last) < b.debounce {
		return false
	}
	b.last = now
	return true
}
