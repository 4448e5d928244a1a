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

// Command tagbox runs the NFC media player and its maintenance tools.
package main

import (
	"fmt"
	"os"

	"github.com/ZaparooProject/tagbox/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	configPath string
	verbose    bool
	devLog     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tagbox",
		Short: "NFC card media player",
		Long: `tagbox plays the media file mapped to the card on its PN532 reader.

Presenting an admin card joins the network stored on the card and starts the
maintenance API. The player returns to normal operation when the maintenance
button is pressed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (or set TAGBOX_CONFIG, default tagbox.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.devLog, "dev-log", false, "Human readable console logging")

	root.AddCommand(
		newRunCmd(a),
		newResolveCmd(a),
		newCheckCmd(a),
		newMapCmd(a),
		newDecodeCmd(a),
		newEncodeCmd(a),
		newPortsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(config.Path(a.configPath))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	a.cfg = cfg

	zc := zap.NewProductionConfig()
	if a.devLog {
		zc = zap.NewDevelopmentConfig()
	}
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
