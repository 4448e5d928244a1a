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

package gpiobutton

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

type fakePin struct {
	inErr error
	pull  gpio.Pull
	level gpio.Level
}

func (p *fakePin) In(pull gpio.Pull, _ gpio.Edge) error {
	p.pull = pull
	return p.inErr
}

func (p *fakePin) Read() gpio.Level { return p.level }

func TestPressed(t *testing.T) {
	t.Parallel()

	pin := &fakePin{level: gpio.High}
	b, err := New(pin, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, gpio.PullUp, pin.pull)

	clock := time.Unix(1000, 0)
	b.now = func() time.Time { return clock }

	assert.False(t, b.Pressed(), "released")

	pin.level = gpio.Low
	assert.True(t, b.Pressed(), "falling edge")
	assert.False(t, b.Pressed(), "held down")

	pin.level = gpio.High
	assert.False(t, b.Pressed())

	clock = clock.Add(10 * time.Millisecond)
	pin.level = gpio.Low
	assert.False(t, b.Pressed(), "bounce")

	pin.level = gpio.High
	b.Pressed()
	clock = clock.Add(100 * time.Millisecond)
	pin.level = gpio.Low
	assert.True(t, b.Pressed())
}

func TestHeldAtStartIsNotAPress(t *testing.T) {
	t.Parallel()

	pin := &fakePin{level: gpio.Low}
	b, err := New(pin, 0)
	require.NoError(t, err)
	assert.False(t, b.Pressed())
}

func TestNewConfigureError(t *testing.T) {
	t.Parallel()

	errBusy := errors.New("pin busy")
	_, err := New(&fakePin{inErr: errBusy}, 0)
	require.ErrorIs(t, err, errBusy)
}
