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
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"go.uber.org/zap"
)

// Network joins and leaves the wireless network of a credential card.
type Network interface {
	Join(ctx context.Context, creds card.Credentials) error
	Leave(ctx context.Context) error
}

// NopNetwork is a Network for devices that are already connected.
type NopNetwork struct{}

// Join implements Network.
func (NopNetwork) Join(context.Context, card.Credentials) error { return nil }

// Leave implements Network.
func (NopNetwork) Leave(context.Context) error { return nil }

// Runner runs an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NetworkManager joins networks with nmcli.
type NetworkManager struct {
	run       Runner
	Interface string
	Timeout   time.Duration
	ssid      string
}

// NewNetworkManager returns a Network driving iface through nmcli. An empty
// iface lets NetworkManager choose.
func NewNetworkManager(iface string) *NetworkManager {
	return &NetworkManager{run: execRunner, Interface: iface, Timeout: 30 * time.Second}
}

// Join implements Network.
func (n *NetworkManager) Join(ctx context.Context, creds card.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	args := []string{"--wait", fmt.Sprint(int(n.Timeout.Seconds())), "device", "wifi", "connect", creds.SSID}
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
	}
	if n.Interface != "" {
		args = append(args, "ifname", n.Interface)
	}
	if out, err := n.run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("join %q: %w: %s", creds.SSID, err, strings.TrimSpace(string(out)))
	}
	n.ssid = creds.SSID
	return nil
}

// Leave implements Network.
func (n *NetworkManager) Leave(ctx context.Context) error {
	if n.ssid == "" {
		return nil
	}
	ssid := n.ssid
	n.ssid = ""
	if out, err := n.run(ctx, "nmcli", "connection", "down", "id", ssid); err != nil {
		return fmt.Errorf("leave %q: %w: %s", ssid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Maintenance joins the credential network and serves the admin API. It
// implements player.Maintenance.
type Maintenance struct {
	network Network
	server  *Server
	logger  *zap.Logger
}

// NewMaintenance creates a Maintenance. A nil network means NopNetwork.
func NewMaintenance(network Network, server *Server, logger *zap.Logger) *Maintenance {
	if network == nil {
		network = NopNetwork{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintenance{network: network, server: server, logger: logger}
}

// Start joins the network and starts the server.
func (m *Maintenance) Start(ctx context.Context, creds card.Credentials) error {
	m.logger.Info("joining network", zap.String("ssid", creds.SSID))
	if err := m.network.Join(ctx, creds); err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}
	if err := m.server.Start(ctx); err != nil {
		return errors.Join(fmt.Errorf("maintenance: %w", err), m.network.Leave(ctx))
	}
	return nil
}

// Shutdown stops the server and leaves the network.
func (m *Maintenance) Shutdown(ctx context.Context) error {
	return errors.Join(m.server.Shutdown(ctx), m.network.Leave(ctx))
}
