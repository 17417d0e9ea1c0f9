// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	DefaultSampleRate      = 48000
	DefaultBlockLength     = 256
	DefaultJoinTimeout     = 5 * time.Second
	DefaultBPM             = 120
	DefaultBeatsPerBar     = 4
	DefaultMonitorAddress  = ":8090"
	DefaultMonitorInterval = 250 * time.Millisecond
	DefaultWatchDebounce   = 200 * time.Millisecond
	DefaultBudgetPercent   = 75
	// MaxBlockLength bounds the per-callback buffers allocated by processors.
	MaxBlockLength = 8192
)

// Config is the resolved engine configuration.
type Config struct {
	Engine    Engine
	Transport Transport
	Monitor   Monitor
	Patch     Patch
}

// Engine configures the audio format and the DSP threads.
type Engine struct {
	SampleRate  uint32
	BlockLength uint32
	// Threads is nil when the thread count is left to the scheduler.
	Threads     *int
	JoinTimeout time.Duration
	RealTime    RealTime
}

// RealTime configures realtime scheduling of DSP threads.
type RealTime struct {
	Enabled       bool
	Priority      int
	Deadline      bool
	BudgetPercent int
}

// Transport configures tempo, count-in, preroll and looping.
type Transport struct {
	BPM         float64
	BeatsPerBar int
	CountInBars int
	PrerollBars int
	Loop        *Loop
}

// Loop is a loop range in frames.
type Loop struct {
	Start uint64
	End   uint64
}

// Monitor configures the status server.
type Monitor struct {
	Enabled  bool
	Address  string
	Interval time.Duration
}

// Patch configures where the graph is loaded from.
type Patch struct {
	Paths    []string
	Watch    bool
	Debounce time.Duration
}

// Default returns the configuration used when no engine file is given.
func Default() *Config {
	return &Config{
		Engine: Engine{
			SampleRate:  DefaultSampleRate,
			BlockLength: DefaultBlockLength,
			JoinTimeout: DefaultJoinTimeout,
			RealTime:    RealTime{BudgetPercent: DefaultBudgetPercent},
		},
		Transport: Transport{
			BPM:         DefaultBPM,
			BeatsPerBar: DefaultBeatsPerBar,
		},
		Monitor: Monitor{
			Address:  DefaultMonitorAddress,
			Interval: DefaultMonitorInterval,
		},
		Patch: Patch{
			Debounce: DefaultWatchDebounce,
		},
	}
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.SampleRate == 0 {
		errs = append(errs, errors.New("engine.sample_rate must be positive"))
	}
	if c.Engine.BlockLength == 0 || c.Engine.BlockLength > MaxBlockLength {
		errs = append(errs, fmt.Errorf("engine.block_length must be between 1 and %d", MaxBlockLength))
	}
	if c.Engine.Threads != nil && *c.Engine.Threads < 0 {
		errs = append(errs, errors.New("engine.threads must not be negative"))
	}
	if c.Engine.JoinTimeout <= 0 {
		errs = append(errs, errors.New("engine.join_timeout must be positive"))
	}
	if rt := c.Engine.RealTime; rt.Enabled && (rt.BudgetPercent <= 0 || rt.BudgetPercent > 100) {
		errs = append(errs, errors.New("engine.realtime.budget_percent must be between 1 and 100"))
	}
	if c.Transport.BPM <= 0 {
		errs = append(errs, errors.New("transport.bpm must be positive"))
	}
	if c.Transport.BeatsPerBar <= 0 {
		errs = append(errs, errors.New("transport.beats_per_bar must be positive"))
	}
	if c.Transport.CountInBars < 0 || c.Transport.PrerollBars < 0 {
		errs = append(errs, errors.New("transport.countin_bars and transport.preroll_bars must not be negative"))
	}
	if l := c.Transport.Loop; l != nil && l.End <= l.Start {
		errs = append(errs, errors.New("transport.loop.end must be after transport.loop.start"))
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	return errors.Join(errs...)
}

// BlockPeriod is the wall-clock duration of one block.
func (e Engine) BlockPeriod() time.Duration {
	if e.SampleRate == 0 {
		return 0
	}
	return time.Duration(e.BlockLength) * time.Second / time.Duration(e.SampleRate)
}

// resolvePaths makes relative patch paths relative to dir.
func (p *Patch) resolvePaths(dir string) {
	for i, path := range p.Paths {
		if !filepath.IsAbs(path) {
			p.Paths[i] = filepath.Join(dir, path)
		}
	}
}
