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

package uart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	cmdGetFirmwareVersion = 0x02
	pn532IC               = 0x32
)

// ErrNoDevice is returned by Detect when no port answers like a PN532.
var ErrNoDevice = errors.New("no PN532 found on serial ports")

// Detector finds the serial port a PN532 is attached to.
type Detector struct {
	List    func() ([]string, error)
	Open    func(name string) (*Transport, error)
	Ignore  []string
	Timeout time.Duration
}

// NewDetector probes the system serial ports, skipping ignore.
func NewDetector(ignore ...string) *Detector {
	return &Detector{
		List:    ListPorts,
		Open:    New,
		Ignore:  ignore,
		Timeout: 250 * time.Millisecond,
	}
}

// Detect opens each candidate port in turn and asks for the firmware
// version. The first port that answers with a PN532 IC is returned open;
// every other port is closed again.
func (d *Detector) Detect(ctx context.Context) (*Transport, error) {
	ports, err := d.List()
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, name := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsPathIgnored(name, d.Ignore) {
			continue
		}

		t, err := d.Open(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.probe(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			_ = t.Close()
			continue
		}
		return t, nil
	}
	return nil, errors.Join(append([]error{ErrNoDevice}, errs...)...)
}

func (d *Detector) probe(ctx context.Context, t *Transport) error {
	if err := t.SetTimeout(d.Timeout); err != nil {
		return err
	}
	resp, err := t.SendCommand(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return err
	}
	if len(resp) < 5 || resp[0] != cmdGetFirmwareVersion+1 || resp[1] != pn532IC {
		return fmt.Errorf("unexpected firmware response % X", resp)
	}
	return nil
}

// IsPathIgnored reports whether devicePath matches an entry of ignorePaths
// after cleaning. The comparison is case-insensitive so COM port names
// match however they were typed.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	for _, p := range ignorePaths {
		if p != "" && normalizedPath(p) == device {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
