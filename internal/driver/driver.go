// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package driver delivers audio callbacks to the engine.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/rtgraph/internal/ctxlog"
)

// Callback processes one block of frames.
type Callback func(ctx context.Context, frames uint32) error

// Dummy is a driver without audio hardware. It calls the callback on a
// ticker at the block period.
type Dummy struct {
	SampleRate  uint32
	BlockLength uint32
	Callback    Callback
	// MaxCallbacks stops the driver after that many callbacks when positive.
	MaxCallbacks uint64
}

// Period is the time between callbacks.
func (d *Dummy) Period() time.Duration {
	if d.SampleRate == 0 {
		return 0
	}
	return time.Duration(d.BlockLength) * time.Second / time.Duration(d.SampleRate)
}

// Run drives callbacks until ctx is canceled, the callback fails, or
// MaxCallbacks is reached. Cancellation is not an error.
func (d *Dummy) Run(ctx context.Context) error {
	if d.Callback == nil || d.Period() <= 0 || d.BlockLength == 0 {
		return errors.New("dummy driver needs a callback, a sample rate and a block length")
	}
	logger := ctxlog.FromContext(ctx).With("component", "driver")
	logger.Info("▶️ Dummy driver started.", "period", d.Period(), "block_length", d.BlockLength)

	ticker := time.NewTicker(d.Period())
	defer ticker.Stop()

	var calls uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("⏹️ Dummy driver stopped.", "callbacks", calls)
			return nil
		case <-ticker.C:
			if err := d.Callback(ctx, d.BlockLength); err != nil {
				return err
			}
			calls++
			if d.MaxCallbacks > 0 && calls >= d.MaxCallbacks {
				logger.Info("⏹️ Dummy driver finished.", "callbacks", calls)
				return nil
			}
		}
	}
}
