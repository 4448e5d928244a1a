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

// Package retry runs reader operations that may fail transiently.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Poll when the deadline passes.
var ErrTimeout = errors.New("retry: timed out")

// Operation is a function that can be retried.
// Returns: data, shouldRetry, error
//   - data: the result if successful
//   - shouldRetry: true if the attempt failed transiently; err then holds
//     the cause and is reported if no attempts remain
//   - error: with shouldRetry false, a permanent failure that stops retries
type Operation[T any] func() (T, bool, error)

// Config configures retry behaviour.
type Config struct {
	// OnRetry is called before each new attempt with the previous cause.
	OnRetry     func(attempt int, cause error)
	Description string
	MaxRetries  int
	Delay       time.Duration
}

// Do runs op until it succeeds, fails permanently, runs out of retries or
// ctx is done.
func Do[T any](ctx context.Context, cfg Config, op Operation[T]) (T, error) {
	var zero T
	var cause error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, cause)
			}
			if err := sleep(ctx, cfg.Delay); err != nil {
				return zero, err
			}
		}

		result, shouldRetry, err := op()
		if !shouldRetry {
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		cause = err
	}

	if cause == nil {
		cause = errors.New("no cause reported")
	}
	return zero, fmt.Errorf("%s: gave up after %d attempts: %w", cfg.name(), cfg.MaxRetries+1, cause)
}

// Poll repeats op every interval until it stops asking for a retry or the
// timeout passes.
func Poll[T any](ctx context.Context, timeout, interval time.Duration, op Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for {
		result, shouldRetry, err := op()
		if !shouldRetry {
			return result, err
		}
		if !time.Now().Before(deadline) {
			return zero, ErrTimeout
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
}

func (c Config) name() string {
	if c.Description == "" {
		return "operation"
	}
	return c.Description
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
