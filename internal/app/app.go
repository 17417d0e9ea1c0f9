// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/rtgraph/internal/config"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/engine"
	"github.com/specialistvlad/rtgraph/internal/graph"
	"github.com/specialistvlad/rtgraph/internal/monitor"
	"github.com/specialistvlad/rtgraph/internal/patch"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/specialistvlad/rtgraph/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	engineCfg *config.Config

	registry  *registry.Registry
	builder   *patch.Builder
	metrics   *prometheus.Registry
	sched     *scheduler.Scheduler
	transport *engine.Transport
	engine    *engine.Engine
	monitor   *monitor.Server

	httpServer *http.Server
	statusAddr atomic.Value
}

// NewApp is the constructor for the main application. It loads the engine
// file, registers the processor modules and creates the scheduler and
// engine. Threads are not started until Run.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	engineCfg := config.Default()
	if cfg.EnginePath != "" {
		var err error
		engineCfg, err = config.Load(ctx, cfg.EnginePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	applyOverrides(engineCfg, cfg)
	if len(engineCfg.Patch.Paths) == 0 {
		return nil, errors.New("no patch paths configured")
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "kinds", reg.Kinds())

	// A bad declaration is a programmer error, so we panic.
	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := engineCfg.Engine
	sched := scheduler.New(ctx, scheduler.Options{
		Threads:     e.Threads,
		SampleRate:  e.SampleRate,
		BlockLength: e.BlockLength,
		RealTime: scheduler.RealTime{
			Enabled:       e.RealTime.Enabled,
			Priority:      e.RealTime.Priority,
			Deadline:      e.RealTime.Deadline,
			BudgetPercent: e.RealTime.BudgetPercent,
		},
		JoinTimeout: e.JoinTimeout,
		Registerer:  promReg,
	})

	t := engineCfg.Transport
	topts := engine.TransportOptions{
		SampleRate:  e.SampleRate,
		BPM:         t.BPM,
		BeatsPerBar: t.BeatsPerBar,
		CountInBars: t.CountInBars,
		PrerollBars: t.PrerollBars,
	}
	if t.Loop != nil {
		topts.LoopEnabled = true
		topts.LoopStart = t.Loop.Start
		topts.LoopEnd = t.Loop.End
	}
	tr := engine.NewTransport(topts)

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		engineCfg: engineCfg,
		registry:  reg,
		builder: patch.NewBuilder(reg, patch.Options{
			SampleRate:  e.SampleRate,
			BlockLength: e.BlockLength,
			Tempo:       registry.Tempo{BPM: t.BPM, BeatsPerBar: t.BeatsPerBar},
		}),
		metrics:   promReg,
		sched:     sched,
		transport: tr,
		engine: engine.New(ctx, sched, tr, engine.Options{
			SampleRate:  e.SampleRate,
			BlockLength: e.BlockLength,
			Registerer:  promReg,
		}),
	}
	if engineCfg.Monitor.Enabled {
		a.monitor = monitor.New(ctx, monitor.Options{
			Interval:  engineCfg.Monitor.Interval,
			Snapshot:  a.stats,
			Transport: tr,
		})
	}
	return a, nil
}

func applyOverrides(ec *config.Config, cfg *Config) {
	if len(cfg.PatchPaths) > 0 {
		ec.Patch.Paths = cfg.PatchPaths
	}
	if cfg.Threads != nil {
		ec.Engine.Threads = cfg.Threads
	}
	if cfg.StatusAddr != "" {
		ec.Monitor.Enabled = true
		ec.Monitor.Address = cfg.StatusAddr
	}
	if cfg.Watch {
		ec.Patch.Watch = true
	}
}

func (a *App) stats() monitor.Stats {
	return monitor.Stats{
		Time:      time.Now(),
		Engine:    a.engine.Snapshot(),
		Scheduler: a.sched.Stats(),
	}
}

// Graph builds the configured patch without running it.
func (a *App) Graph(ctx context.Context) ([]graph.NodeInfo, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	c, err := a.builder.BuildFiles(ctx, a.engineCfg.Patch.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to build patch: %w", err)
	}
	return c.Describe(), nil
}

// Reload rebuilds the patch and swaps it into the scheduler. The running
// graph is kept when the build fails.
func (a *App) Reload(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	c, err := a.builder.BuildFiles(ctx, a.engineCfg.Patch.Paths...)
	if err != nil {
		logger.Error("Patch reload failed, keeping current graph.", "error", err)
		return fmt.Errorf("failed to build patch: %w", err)
	}

	replaceCtx, cancel := context.WithTimeout(ctx, a.engineCfg.Engine.JoinTimeout)
	defer cancel()
	if err := a.sched.Replace(replaceCtx, c); err != nil {
		logger.Error("Patch swap failed, keeping current graph.", "error", err)
		return fmt.Errorf("failed to swap graph: %w", err)
	}
	logger.Info("♻️ Patch reloaded.", "generation", a.sched.Generation(), "nodes", c.Len(), "max_route_latency", c.MaxRouteLatency())
	return nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }

// Scheduler returns the application's scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Engine returns the application's engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// EngineConfig returns the resolved engine configuration.
func (a *App) EngineConfig() *config.Config { return a.engineCfg }

// StatusAddr returns the address the status server listens on, or "" when
// it is not running.
func (a *App) StatusAddr() string {
	addr, _ := a.statusAddr.Load().(string)
	return addr
}
