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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/tagbox/admin"
	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/config"
	"github.com/ZaparooProject/tagbox/credential"
	"github.com/ZaparooProject/tagbox/internal/gpiobutton"
	"github.com/ZaparooProject/tagbox/internal/playback"
	"github.com/ZaparooProject/tagbox/mapper"
	"github.com/ZaparooProject/tagbox/metrics"
	"github.com/ZaparooProject/tagbox/player"
	"github.com/ZaparooProject/tagbox/pn532"
	"github.com/ZaparooProject/tagbox/pn532/transport/i2c"
	"github.com/ZaparooProject/tagbox/pn532/transport/uart"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the player",
		Long: `Opens the reader and plays the file mapped to each presented card until
interrupted. An admin card switches to maintenance mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd)
		},
	}
}

func (a *app) run(cmd *cobra.Command) error {
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := openTransport(ctx, cfg.Reader)
	if err != nil {
		return err
	}
	dev, err := pn532.New(transport,
		pn532.WithLogger(logger.Named("pn532")),
		pn532.WithMaxRetries(cfg.Reader.Retries),
		pn532.WithTimeout(cfg.Reader.Timeout))
	if err != nil {
		return errors.Join(err, transport.Close())
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("closing reader", zap.Error(err))
		}
	}()

	if err := dev.Init(ctx); err != nil {
		return fmt.Errorf("initialize reader: %w", err)
	}

	m := metrics.New()
	extractor := credential.NewExtractor(dev,
		credential.WithRange(cfg.CredentialRange()),
		credential.WithLogger(logger.Named("credential")))
	monitor := card.NewMonitor(dev,
		card.WithClassifier(extractor),
		card.WithRemovalThreshold(cfg.Monitor.RemovalThreshold),
		card.WithLogger(logger.Named("monitor")))
	mp := a.newMapper(mapper.WithObserver(m.ObserveResolve))
	pb := playback.New(cfg.Playback.Program, cfg.Playback.Args, cfg.Mapping.MediaRoot, logger.Named("playback"))

	var orch *player.Orchestrator
	server := admin.NewServer(admin.Config{
		Current:   currentFunc(func() card.Identifier { return orch.Current() }),
		Mapper:    mp,
		Store:     mapper.NewStore(cfg.MappingPath(), logger.Named("store")),
		Metrics:   m.Handler(),
		MediaRoot: cfg.Mapping.MediaRoot,
		Listen:    cfg.Admin.Listen,
		MaxUpload: cfg.Admin.MaxUpload,
		CORS:      cfg.Admin.CORS,
	}, logger.Named("admin"))
	maint := admin.NewMaintenance(admin.NewNetworkManager(cfg.Admin.Interface), server, logger.Named("maintenance"))

	opts := []player.Option{
		player.WithMaintenance(maint),
		player.WithInterval(cfg.Monitor.PollInterval),
		player.WithEventObserver(m.CardEvent),
		player.WithIndicator(logIndicator{logger: logger}),
		player.WithLogger(logger.Named("player")),
	}
	if cfg.Button.Pin != "" {
		btn, err := gpiobutton.Open(cfg.Button.Pin, cfg.Button.Debounce)
		if err != nil {
			return err
		}
		opts = append(opts, player.WithButton(btn))
	} else {
		logger.Warn("button.pin not set, credential cards will not enter maintenance mode")
	}
	orch = player.New(monitor, mp, pb, opts...)

	logger.Info("reader ready",
		zap.String("transport", string(transport.Type())),
		zap.String("media_root", cfg.Mapping.MediaRoot))
	return orch.Run(ctx)
}

func openTransport(ctx context.Context, rc config.ReaderConfig) (pn532.Transport, error) {
	switch {
	case rc.Transport == config.TransportI2C:
		t, err := i2c.New(rc.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	case rc.Device == "":
		t, err := uart.NewDetector(rc.IgnorePorts...).Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("detect reader: %w", err)
		}
		return t, nil
	default:
		t, err := uart.New(rc.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	}
}

func (a *app) newMapper(opts ...mapper.Option) *mapper.Mapper {
	opts = append([]mapper.Option{
		mapper.WithFile(a.cfg.Mapping.File),
		mapper.WithVerifyReferenced(a.cfg.Mapping.VerifyReferenced),
		mapper.WithLogger(a.logger.Named("mapper")),
	}, opts...)
	return mapper.New(os.DirFS(a.cfg.Mapping.MediaRoot), opts...)
}

type currentFunc func() card.Identifier

func (f currentFunc) Current() card.Identifier { return f() }

// logIndicator reports status changes in the log on players without an
// LED.
type logIndicator struct {
	logger *zap.Logger
}

func (l logIndicator) Status(s player.Status) {
	l.logger.Info("status", zap.Stringer("status", s))
}
