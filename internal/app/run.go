// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/driver"
	"golang.org/x/sync/errgroup"
)

// Run builds the patch, starts the DSP threads and drives the engine until
// ctx is canceled or the configured duration has passed.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	if a.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Duration)
		defer cancel()
	}

	stop, err := a.start(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stop()) }()

	if err := a.startStatusServer(ctx); err != nil {
		return err
	}
	defer a.closeStatusServer(ctx)

	a.engine.Activate()
	defer a.engine.Deactivate()
	if a.config.Roll {
		a.transport.RequestRoll(a.engineCfg.Transport.CountInBars > 0, false)
	}

	e := a.engineCfg.Engine
	drv := &driver.Dummy{
		SampleRate:  e.SampleRate,
		BlockLength: e.BlockLength,
		Callback:    a.engine.Process,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return drv.Run(gctx) })
	if a.monitor != nil {
		g.Go(func() error { return a.monitor.Run(gctx) })
	}
	if a.engineCfg.Patch.Watch {
		g.Go(func() error { return a.watchPatch(gctx) })
	}

	a.logger.Info("🚀 Engine running.", "engine_id", a.engine.ID().String(), "threads", a.sched.Stats().Threads, "block_period", e.BlockPeriod())
	if err := g.Wait(); err != nil {
		return fmt.Errorf("engine stopped: %w", err)
	}

	snap := a.engine.Snapshot()
	a.logger.Info("🏁 Engine stopped.", "cycles", snap.Cycles, "skipped", snap.Skipped, "xruns", snap.Xruns, "max_processing_us", snap.MaxProcessingUS)
	return nil
}

// start builds the patch, starts the threads and installs the graph. The
// returned function terminates the threads.
func (a *App) start(ctx context.Context) (func() error, error) {
	c, err := a.builder.BuildFiles(ctx, a.engineCfg.Patch.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to build patch: %w", err)
	}
	if err := a.sched.StartThreads(ctx); err != nil {
		return nil, err
	}
	stop := func() error {
		return a.sched.TerminateThreads(context.WithoutCancel(ctx))
	}
	if err := a.sched.Rechain(c); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to install graph: %w", err), stop())
	}
	return stop, nil
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Callbacks   int           `json:"callbacks" yaml:"callbacks"`
	Nodes       int           `json:"nodes" yaml:"nodes"`
	Threads     int           `json:"threads" yaml:"threads"`
	BlockPeriod time.Duration `json:"block_period" yaml:"block_period"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
	Mean        time.Duration `json:"mean" yaml:"mean"`
	Max         time.Duration `json:"max" yaml:"max"`
	Xruns       uint64        `json:"xruns" yaml:"xruns"`
	// Load is the mean callback time relative to the block period.
	Load float64 `json:"load" yaml:"load"`
}

// Bench runs callbacks back to back with the transport rolling and reports
// callback timings.
func (a *App) Bench(ctx context.Context, callbacks int) (*BenchResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if callbacks <= 0 {
		return nil, errors.New("callbacks must be positive")
	}

	stop, err := a.start(ctx)
	if err != nil {
		return nil, err
	}
	a.engine.Activate()
	a.transport.RequestRoll(false, false)

	e := a.engineCfg.Engine
	res := &BenchResult{
		Callbacks:   callbacks,
		Nodes:       a.sched.Graph().Len(),
		Threads:     a.sched.Stats().Threads,
		BlockPeriod: e.BlockPeriod(),
	}
	began := time.Now()
	for i := 0; i < callbacks; i++ {
		if ctx.Err() != nil {
			res.Callbacks = i
			break
		}
		t0 := time.Now()
		if err := a.engine.Process(ctx, e.BlockLength); err != nil {
			a.engine.Deactivate()
			return nil, errors.Join(err, stop())
		}
		res.Max = max(res.Max, time.Since(t0))
	}
	res.Elapsed = time.Since(began)
	a.engine.Deactivate()
	if err := stop(); err != nil {
		return nil, err
	}

	if res.Callbacks > 0 {
		res.Mean = res.Elapsed / time.Duration(res.Callbacks)
	}
	if res.BlockPeriod > 0 {
		res.Load = float64(res.Mean) / float64(res.BlockPeriod)
	}
	res.Xruns = a.engine.Snapshot().Xruns
	a.logger.Info("⏱️ Benchmark finished.", "callbacks", res.Callbacks, "mean", res.Mean, "max", res.Max, "xruns", res.Xruns)
	return res, nil
}
