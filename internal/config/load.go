// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
)

type fileRoot struct {
	Engine    *engineBlock    `hcl:"engine,block"`
	Transport *transportBlock `hcl:"transport,block"`
	Monitor   *monitorBlock   `hcl:"monitor,block"`
	Patch     *patchBlock     `hcl:"patch,block"`
}

type engineBlock struct {
	SampleRate  *uint32        `hcl:"sample_rate,optional"`
	BlockLength *uint32        `hcl:"block_length,optional"`
	Threads     *int           `hcl:"threads,optional"`
	JoinTimeout *string        `hcl:"join_timeout,optional"`
	RealTime    *realtimeBlock `hcl:"realtime,block"`
}

type realtimeBlock struct {
	Priority      *int  `hcl:"priority,optional"`
	Deadline      *bool `hcl:"deadline,optional"`
	BudgetPercent *int  `hcl:"budget_percent,optional"`
}

type transportBlock struct {
	BPM         *float64   `hcl:"bpm,optional"`
	BeatsPerBar *int       `hcl:"beats_per_bar,optional"`
	CountInBars *int       `hcl:"countin_bars,optional"`
	PrerollBars *int       `hcl:"preroll_bars,optional"`
	Loop        *loopBlock `hcl:"loop,block"`
}

type loopBlock struct {
	Start uint64 `hcl:"start"`
	End   uint64 `hcl:"end"`
}

type monitorBlock struct {
	Address  *string `hcl:"address,optional"`
	Interval *string `hcl:"interval,optional"`
}

type patchBlock struct {
	Paths    []string `hcl:"paths"`
	Watch    *bool    `hcl:"watch,optional"`
	Debounce *string  `hcl:"debounce,optional"`
}

// Load reads and validates the engine file at path. Relative patch paths are
// resolved against the file's directory.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading engine file.", "path", path)

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	cfg, err := decode(file.Body, path)
	if err != nil {
		return nil, err
	}
	cfg.Patch.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine file %s: %w", path, err)
	}
	logger.Debug("Engine file loaded.", "sample_rate", cfg.Engine.SampleRate, "block_length", cfg.Engine.BlockLength, "patch_paths", cfg.Patch.Paths)
	return cfg, nil
}

// Parse decodes and validates an engine file held in memory. Patch paths are
// kept as written.
func Parse(filename string, src []byte) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	cfg, err := decode(file.Body, filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine file %s: %w", filename, err)
	}
	return cfg, nil
}

func decode(body hcl.Body, filename string) (*Config, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	cfg := Default()
	if e := root.Engine; e != nil {
		set(&cfg.Engine.SampleRate, e.SampleRate)
		set(&cfg.Engine.BlockLength, e.BlockLength)
		cfg.Engine.Threads = e.Threads
		if err := setDuration(&cfg.Engine.JoinTimeout, e.JoinTimeout, "engine.join_timeout"); err != nil {
			return nil, err
		}
		if rt := e.RealTime; rt != nil {
			cfg.Engine.RealTime.Enabled = true
			set(&cfg.Engine.RealTime.Priority, rt.Priority)
			set(&cfg.Engine.RealTime.Deadline, rt.Deadline)
			set(&cfg.Engine.RealTime.BudgetPercent, rt.BudgetPercent)
		}
	}
	if t := root.Transport; t != nil {
		set(&cfg.Transport.BPM, t.BPM)
		set(&cfg.Transport.BeatsPerBar, t.BeatsPerBar)
		set(&cfg.Transport.CountInBars, t.CountInBars)
		set(&cfg.Transport.PrerollBars, t.PrerollBars)
		if t.Loop != nil {
			cfg.Transport.Loop = &Loop{Start: t.Loop.Start, End: t.Loop.End}
		}
	}
	if m := root.Monitor; m != nil {
		cfg.Monitor.Enabled = true
		set(&cfg.Monitor.Address, m.Address)
		if err := setDuration(&cfg.Monitor.Interval, m.Interval, "monitor.interval"); err != nil {
			return nil, err
		}
	}
	if p := root.Patch; p != nil {
		cfg.Patch.Paths = p.Paths
		set(&cfg.Patch.Watch, p.Watch)
		if err := setDuration(&cfg.Patch.Debounce, p.Debounce, "patch.debounce"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, *v, err)
	}
	*dst = d
	return nil
}
