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

// Package pn532 is a compact driver for the NXP PN532 reader. It covers
// what the player needs: detecting one ISO14443A card, reporting its UID
// and reading MIFARE Classic data blocks.
package pn532

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/internal/retry"
	"go.uber.org/zap"
)

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

const (
	// brTyTypeA selects 106 kbps ISO14443 type A targets.
	brTyTypeA = 0x00
	// rfItemMaxRetries is the RFConfiguration item for retry counts.
	rfItemMaxRetries = 0x05
	// targetNumber is the logical target used for InDataExchange.
	targetNumber = 0x01
)

// FirmwareVersion is the GetFirmwareVersion answer.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", v.IC, v.Version, v.Revision)
}

// Target is a card listed by InListPassiveTarget.
type Target struct {
	UID  []byte
	ATQA [2]byte
	SAK  byte
}

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// WithMaxRetries sets how often a transiently failing command is repeated.
func WithMaxRetries(n int) Option {
	return func(d *Device) error {
		if n < 0 {
			return fmt.Errorf("%w: max retries %d", ErrInvalidParameter, n)
		}
		d.retry.MaxRetries = n
		return nil
	}
}

// WithRetryDelay sets the pause between retries.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Device) error {
		d.retry.Delay = delay
		return nil
	}
}

// WithTimeout sets the transport response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if err := d.transport.SetTimeout(timeout); err != nil {
			return fmt.Errorf("set timeout: %w", err)
		}
		return nil
	}
}

// Device represents a PN532 reader. It implements card.Reader and
// credential.SectorReader.
//
// Device is not safe for concurrent use. The player drives it from a
// single control loop.
type Device struct {
	transport Transport
	logger    *zap.Logger
	target    *Target
	targetErr error
	retry     retry.Config
}

// New creates a Device on transport.
func New(transport Transport, opts ...Option) (*Device, error) {
	d := &Device{
		transport: transport,
		logger:    zap.NewNop(),
		retry: retry.Config{
			MaxRetries: 2,
			Delay:      10 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.retry.OnRetry = func(attempt int, cause error) {
		d.logger.Debug("retrying command", zap.Int("attempt", attempt), zap.Error(cause))
	}
	return d, nil
}

// Init wakes the PN532, configures the SAM for normal mode and limits
// passive activation retries so a poll returns promptly on an empty field.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	d.logger.Info("PN532 found", zap.Stringer("firmware", fw), zap.String("transport", string(d.transport.Type())))

	if _, err := d.command(ctx, cmdSAMConfiguration, []byte{0x01, 0x14, 0x01}); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}
	// MxRtyATR, MxRtyPSL, MxRtyPassiveActivation
	if _, err := d.command(ctx, cmdRFConfiguration, []byte{rfItemMaxRetries, 0xFF, 0x01, 0x02}); err != nil {
		return fmt.Errorf("RF configuration: %w", err)
	}
	return nil
}

// FirmwareVersion queries the chip version.
func (d *Device) FirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	resp, err := d.command(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return FirmwareVersion{}, fmt.Errorf("get firmware version: %w", err)
	}
	if len(resp) < 5 {
		return FirmwareVersion{}, fmt.Errorf("%w: firmware response of %d bytes", ErrUnexpectedResponse, len(resp))
	}
	return FirmwareVersion{IC: resp[1], Version: resp[2], Revision: resp[3], Support: resp[4]}, nil
}

// CardPresent implements card.Reader. It lists at most one type A target
// and caches it for ReadIdentifier and ReadSector. A target whose answer
// cannot be parsed still counts as present so the caller can report a
// faulty card.
func (d *Device) CardPresent(ctx context.Context) (bool, error) {
	d.target, d.targetErr = nil, nil

	resp, err := d.command(ctx, cmdInListPassiveTarget, []byte{0x01, brTyTypeA})
	if err != nil {
		if IsTimeout(err) {
			return false, nil
		}
		return false, fmt.Errorf("list passive target: %w", err)
	}
	if len(resp) < 2 {
		return false, fmt.Errorf("%w: InListPassiveTarget response of %d bytes", ErrUnexpectedResponse, len(resp))
	}
	if resp[1] == 0 {
		return false, nil
	}

	d.target, d.targetErr = parseTarget(resp[2:])
	return true, nil
}

// ReadIdentifier implements card.Reader.
func (d *Device) ReadIdentifier(_ context.Context) (card.Identifier, error) {
	if d.targetErr != nil {
		return card.Identifier{}, d.targetErr
	}
	if d.target == nil {
		return card.Identifier{}, ErrNoTarget
	}
	return card.NewIdentifier(d.target.UID), nil
}

// Target returns the card found by the last CardPresent, if any.
func (d *Device) Target() *Target {
	return d.target
}

// Release deselects all targets.
func (d *Device) Release(ctx context.Context) error {
	resp, err := d.command(ctx, cmdInRelease, []byte{0x00})
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	d.target = nil
	if len(resp) > 1 && resp[1]&0x3F != 0 {
		return fmt.Errorf("%w: InRelease status 0x%02X", ErrCommandFailed, resp[1])
	}
	return nil
}

// Close closes the transport.
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// parseTarget decodes one ISO14443A target entry:
// Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID1...
func parseTarget(b []byte) (*Target, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("%w: target data of %d bytes", ErrInvalidUID, len(b))
	}
	n := int(b[4])
	switch n {
	case 4, 7, 10:
	default:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidUID, n)
	}
	if len(b) < 5+n {
		return nil, fmt.Errorf("%w: truncated, want %d bytes, have %d", ErrInvalidUID, n, len(b)-5)
	}
	return &Target{
		ATQA: [2]byte{b[1], b[2]},
		SAK:  b[3],
		UID:  append([]byte(nil), b[5:5+n]...),
	}, nil
}

// command sends cmd through the transport, retrying transient failures,
// and checks the response code.
func (d *Device) command(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	cfg := d.retry
	cfg.Description = fmt.Sprintf("command 0x%02X", cmd)

	return retry.Do(ctx, cfg, func() ([]byte, bool, error) {
		resp, err := d.transport.SendCommand(ctx, cmd, args)
		if err != nil {
			return nil, IsRetryable(err), err
		}
		if len(resp) == 0 || resp[0] != cmd+1 {
			return nil, false, fmt.Errorf("%w: for command 0x%02X got % X", ErrUnexpectedResponse, cmd, resp)
		}
		return resp, false, nil
	})
}

// dataExchange relays data to the selected target and returns its answer.
func (d *Device) dataExchange(ctx context.Context, data []byte) ([]byte, error) {
	args := make([]byte, 0, len(data)+1)
	args = append(args, targetNumber)
	args = append(args, data...)

	resp, err := d.command(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: InDataExchange response of %d bytes", ErrUnexpectedResponse, len(resp))
	}
	if status := resp[1] & 0x3F; status != 0 {
		return nil, fmt.Errorf("%w: InDataExchange status 0x%02X", ErrCommandFailed, status)
	}
	return resp[2:], nil
}
