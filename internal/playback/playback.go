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

// Package playback plays media files by running an external player
// program, one file at a time.
package playback

import (
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProgram is returned when no player program is configured.
var ErrNoProgram = errors.New("playback: no player program")

// Command runs Program with Args followed by the media file path.
type Command struct {
	logger    *zap.Logger
	cmd       *exec.Cmd
	done      chan struct{}
	Program   string
	MediaRoot string
	Args      []string
	mu        sync.Mutex
}

// New returns a Command playing files below mediaRoot with program.
func New(program string, args []string, mediaRoot string, logger *zap.Logger) *Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{
		logger:    logger,
		Program:   program,
		Args:      args,
		MediaRoot: mediaRoot,
	}
}

// Play stops the current file and starts filename, a slash separated path
// relative to the media root.
func (c *Command) Play(filename string) error {
	if c.Program == "" {
		return ErrNoProgram
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	file := filepath.Join(c.MediaRoot, filepath.FromSlash(path.Clean("/"+filename)))
	args := append(append([]string(nil), c.Args...), file)
	cmd := exec.Command(c.Program, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Program, err)
	}

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		c.logger.Debug("player exited", zap.String("file", file), zap.Error(err))
		close(done)
	}()

	c.cmd, c.done = cmd, done
	c.logger.Info("playing", zap.String("file", file), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Playing reports whether the player program is still running.
func (c *Command) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stop ends playback. It is a no-op when nothing plays.
func (c *Command) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Command) stopLocked() {
	if c.cmd == nil {
		return
	}
	select {
	case <-c.done:
	default:
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Warn("failed to stop player", zap.Error(err))
		}
		<-c.done
	}
	c.cmd, c.done = nil, nil
}
