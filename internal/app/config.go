// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds everything an App needs that does not come from the engine
// file.
type Config struct {
	// EnginePath is the HCL engine file. Defaults apply when empty.
	EnginePath string
	// PatchPaths override the engine file's patch paths.
	PatchPaths []string

	LogFormat string
	LogLevel  string

	// StatusAddr overrides the monitor address. An empty value keeps the
	// engine file's setting.
	StatusAddr string
	// Threads overrides engine.threads.
	Threads *int
	// Watch enables hot reloading of the patch.
	Watch bool
	// Roll starts the transport once the engine is running.
	Roll bool
	// Duration stops the run after the given time. Zero runs until the
	// context is canceled.
	Duration time.Duration
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Duration < 0 {
		return nil, errors.New("duration must not be negative")
	}
	if cfg.Threads != nil && *cfg.Threads < 0 {
		return nil, errors.New("threads must not be negative")
	}
	if cfg.EnginePath == "" && len(cfg.PatchPaths) == 0 {
		return nil, errors.New("either an engine file or a patch path is required")
	}
	return &cfg, nil
}
