// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/graph"
	"github.com/specialistvlad/rtgraph/internal/processing"
	"golang.org/x/time/rate"
)

// ErrCallbackTooLarge is returned by Process for callbacks longer than the
// configured block length.
var ErrCallbackTooLarge = errors.New("callback exceeds block length")

// Runner executes the live graph. *scheduler.Scheduler implements it.
type Runner interface {
	RunCycle(ctx context.Context, cycle processing.Cycle) error
	Graph() *graph.Collection
	TryLockGraph() bool
	UnlockGraph()
}

// Options configures an Engine.
type Options struct {
	SampleRate  uint32
	BlockLength uint32
	// Registerer receives the engine's metrics when set.
	Registerer prometheus.Registerer
}

// Engine splits audio callbacks into graph cycles.
type Engine struct {
	id        uuid.UUID
	opts      Options
	runner    Runner
	transport *Transport
	logger    *slog.Logger
	metrics   *metrics
	xrunLog   *rate.Limiter

	running atomic.Bool

	// Owned by the audio callback.
	remainingPreroll atomic.Uint32
	segments         []Segment
	sinksOf          *graph.Collection
	sinks            []processing.Sink

	cycles         atomic.Uint64
	skipped        atomic.Uint64
	xruns          atomic.Uint64
	lastProcessing atomic.Int64
	maxProcessing  atomic.Int64
	peakBits       atomic.Uint32
}

// New creates an inactive engine.
func New(ctx context.Context, runner Runner, transport *Transport, opts Options) *Engine {
	id := uuid.New()
	return &Engine{
		id:        id,
		opts:      opts,
		runner:    runner,
		transport: transport,
		logger:    ctxlog.FromContext(ctx).With("component", "engine", "engine_id", id.String()),
		metrics:   newMetrics(opts.Registerer),
		xrunLog:   rate.NewLimiter(rate.Every(time.Second), 1),
		segments:  make([]Segment, 0, 8),
	}
}

// ID identifies this engine instance in logs and monitor events.
func (e *Engine) ID() uuid.UUID { return e.id }

// Transport returns the engine's transport.
func (e *Engine) Transport() *Transport { return e.transport }

// Activate lets callbacks reach the graph.
func (e *Engine) Activate() {
	e.running.Store(true)
	e.logger.Info("🔊 Engine activated.", "sample_rate", e.opts.SampleRate, "block_length", e.opts.BlockLength)
}

// Deactivate makes callbacks return silence without touching the graph.
func (e *Engine) Deactivate() {
	if e.running.Swap(false) {
		e.logger.Info("🔇 Engine deactivated.")
	}
}

// BlockPeriod is the wall-clock duration of one block.
func (e *Engine) BlockPeriod() time.Duration {
	if e.opts.SampleRate == 0 {
		return 0
	}
	return time.Duration(e.opts.BlockLength) * time.Second / time.Duration(e.opts.SampleRate)
}

// Process handles one audio callback of frames.
//
// The callback is skipped when the engine is inactive or when a rechain holds
// the graph access flag. Node buffers hold one block, so callbacks longer
// than the block length are rejected before any state changes.
func (e *Engine) Process(ctx context.Context, frames uint32) error {
	if frames > e.opts.BlockLength {
		return fmt.Errorf("%w: %d frames, block length is %d", ErrCallbackTooLarge, frames, e.opts.BlockLength)
	}
	if !e.running.Load() || frames == 0 {
		return nil
	}
	if !e.runner.TryLockGraph() {
		e.skipped.Add(1)
		e.metrics.skipped.Inc()
		return nil
	}
	defer e.runner.UnlockGraph()

	g := e.runner.Graph()
	if g == nil {
		e.skipped.Add(1)
		e.metrics.skipped.Inc()
		return nil
	}

	began := time.Now()

	if e.transport.prepare() {
		e.remainingPreroll.Store(g.MaxRouteLatency())
	}
	snap := e.transport.Snapshot()
	countIn, recPreroll := e.transport.counters()
	counters := Counters{
		LatencyPreroll:   e.remainingPreroll.Load(),
		CountIn:          countIn,
		RecordingPreroll: recPreroll,
	}
	if !snap.Rolling() {
		counters.LatencyPreroll = 0
	}

	e.segments = Split(e.segments[:0], frames, &counters, g.PrerollThresholds())

	var prerolled uint32
	for _, seg := range e.segments {
		cycle := processing.Cycle{
			Time: processing.TimeInfo{
				GlobalStart:           snap.Playhead,
				GlobalStartWithOffset: snap.Playhead + uint64(seg.Offset),
				LocalOffset:           seg.Offset,
				Frames:                seg.Frames,
			},
			Transport:        snap,
			RemainingPreroll: seg.RemainingPreroll,
		}
		if err := e.runner.RunCycle(ctx, cycle); err != nil {
			return fmt.Errorf("running %s segment at offset %d: %w", seg.Kind, seg.Offset, err)
		}
		if seg.Kind == SegmentLatencyPreroll {
			prerolled += seg.Frames
		}
		e.metrics.segments[seg.Kind].Inc()
	}

	if snap.Rolling() {
		e.remainingPreroll.Store(counters.LatencyPreroll)
	}
	e.transport.consume(countIn, recPreroll, counters.CountIn, counters.RecordingPreroll)
	if snap.Rolling() && counters.LatencyPreroll == 0 {
		e.transport.advance(snap, frames-prerolled)
	}

	e.updatePeak(g)
	e.account(time.Since(began))
	return nil
}

func (e *Engine) updatePeak(g *graph.Collection) {
	if e.sinksOf != g {
		e.sinks = g.Sinks()
		e.sinksOf = g
	}
	var peak float32
	for _, s := range e.sinks {
		peak = max(peak, s.Peak())
	}
	e.peakBits.Store(math.Float32bits(peak))
}

// account records timing of a completed callback.
func (e *Engine) account(elapsed time.Duration) {
	e.cycles.Add(1)
	e.lastProcessing.Store(int64(elapsed))
	for {
		cur := e.maxProcessing.Load()
		if int64(elapsed) <= cur || e.maxProcessing.CompareAndSwap(cur, int64(elapsed)) {
			break
		}
	}

	e.metrics.callbacks.Inc()
	e.metrics.processing.Observe(elapsed.Seconds())

	period := e.BlockPeriod()
	if period <= 0 {
		return
	}
	e.metrics.load.Set(float64(elapsed) / float64(period))
	if elapsed > period {
		e.xruns.Add(1)
		e.metrics.xruns.Inc()
		if e.xrunLog.Allow() {
			e.logger.Warn("Callback exceeded block period.", "elapsed", elapsed, "period", period, "xruns", e.xruns.Load())
		}
	}
}

// Snapshot is a point-in-time view of the engine for monitoring.
type Snapshot struct {
	ID               string  `json:"id"`
	Running          bool    `json:"running"`
	Cycles           uint64  `json:"cycles"`
	Skipped          uint64  `json:"skipped"`
	Xruns            uint64  `json:"xruns"`
	LastProcessingUS int64   `json:"last_processing_us"`
	MaxProcessingUS  int64   `json:"max_processing_us"`
	DSPLoad          float64 `json:"dsp_load"`
	Peak             float32 `json:"peak"`
	PlayState        string  `json:"play_state"`
	Playhead         uint64  `json:"playhead"`
	RemainingPreroll uint32  `json:"remaining_preroll"`
}

// Snapshot returns the current counters.
func (e *Engine) Snapshot() Snapshot {
	last := time.Duration(e.lastProcessing.Load())
	s := Snapshot{
		ID:               e.id.String(),
		Running:          e.running.Load(),
		Cycles:           e.cycles.Load(),
		Skipped:          e.skipped.Load(),
		Xruns:            e.xruns.Load(),
		LastProcessingUS: last.Microseconds(),
		MaxProcessingUS:  time.Duration(e.maxProcessing.Load()).Microseconds(),
		Peak:             math.Float32frombits(e.peakBits.Load()),
		PlayState:        e.transport.State().String(),
		Playhead:         e.transport.Playhead(),
		RemainingPreroll: e.remainingPreroll.Load(),
	}
	if period := e.BlockPeriod(); period > 0 {
		s.DSPLoad = float64(last) / float64(period)
	}
	return s
}
