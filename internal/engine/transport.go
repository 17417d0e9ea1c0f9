// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"sync/atomic"

	"github.com/specialistvlad/rtgraph/internal/processing"
)

// TransportOptions configures a Transport.
type TransportOptions struct {
	SampleRate  uint32
	BPM         float64
	BeatsPerBar int
	// CountInBars is played before rolling when a roll asks for a count-in.
	CountInBars int
	// PrerollBars is rolled before the record position when a roll asks for
	// recording preroll.
	PrerollBars int
	LoopEnabled bool
	LoopStart   uint64
	LoopEnd     uint64
}

// Transport is the play state machine. Control methods may be called from
// any goroutine; prepare and the counters are advanced by the audio callback.
type Transport struct {
	opts TransportOptions

	state       atomic.Int32
	playhead    atomic.Uint64
	loopEnabled atomic.Bool
	loopStart   atomic.Uint64
	loopEnd     atomic.Uint64

	countIn          atomic.Uint64
	recordingPreroll atomic.Uint64
}

// NewTransport creates a paused transport at position zero.
func NewTransport(opts TransportOptions) *Transport {
	if opts.BeatsPerBar <= 0 {
		opts.BeatsPerBar = 4
	}
	t := &Transport{opts: opts}
	t.SetLoop(opts.LoopEnabled, opts.LoopStart, opts.LoopEnd)
	return t
}

// FramesPerBar converts one bar at the configured tempo to frames.
func (t *Transport) FramesPerBar() uint64 {
	if t.opts.BPM <= 0 {
		return 0
	}
	beat := float64(t.opts.SampleRate) * 60 / t.opts.BPM
	return uint64(beat * float64(t.opts.BeatsPerBar))
}

// BPM returns the configured tempo.
func (t *Transport) BPM() float64 { return t.opts.BPM }

// BeatsPerBar returns the configured time signature numerator.
func (t *Transport) BeatsPerBar() int { return t.opts.BeatsPerBar }

// SampleRate returns the configured sample rate.
func (t *Transport) SampleRate() uint32 { return t.opts.SampleRate }

// RequestRoll asks the transport to start. With countIn the configured
// count-in bars are played first; with preroll the playhead moves back by
// the preroll bars, which are then played as recording preroll.
func (t *Transport) RequestRoll(countIn, preroll bool) {
	bar := t.FramesPerBar()
	t.countIn.Store(0)
	t.recordingPreroll.Store(0)
	if countIn {
		t.countIn.Store(bar * uint64(max(t.opts.CountInBars, 0)))
	}
	if preroll {
		frames := bar * uint64(max(t.opts.PrerollBars, 0))
		pos := t.playhead.Load()
		frames = min(frames, pos)
		t.playhead.Store(pos - frames)
		t.recordingPreroll.Store(frames)
	}
	t.state.Store(int32(processing.RollRequested))
}

// RequestPause asks the transport to stop at the next callback.
func (t *Transport) RequestPause() {
	t.state.Store(int32(processing.PauseRequested))
}

// Seek moves the playhead.
func (t *Transport) Seek(pos uint64) {
	t.playhead.Store(pos)
}

// SetLoop updates the loop range.
func (t *Transport) SetLoop(enabled bool, start, end uint64) {
	t.loopStart.Store(start)
	t.loopEnd.Store(end)
	t.loopEnabled.Store(enabled)
}

// State returns the current play state.
func (t *Transport) State() processing.PlayState {
	return processing.PlayState(t.state.Load())
}

// Playhead returns the current position.
func (t *Transport) Playhead() uint64 {
	return t.playhead.Load()
}

// Snapshot returns an immutable view for the current callback.
func (t *Transport) Snapshot() processing.TransportSnapshot {
	return processing.TransportSnapshot{
		State:       t.State(),
		Playhead:    t.playhead.Load(),
		LoopEnabled: t.loopEnabled.Load(),
		LoopStart:   t.loopStart.Load(),
		LoopEnd:     t.loopEnd.Load(),
	}
}

// prepare applies pending state transitions at the start of a callback. It
// reports whether the transport just started rolling.
func (t *Transport) prepare() bool {
	switch t.State() {
	case processing.PauseRequested:
		t.state.Store(int32(processing.Paused))
	case processing.RollRequested:
		if t.countIn.Load() == 0 {
			return t.state.CompareAndSwap(int32(processing.RollRequested), int32(processing.Rolling))
		}
	}
	return false
}

// counters loads the count-in and recording preroll counters.
func (t *Transport) counters() (countIn, preroll uint64) {
	return t.countIn.Load(), t.recordingPreroll.Load()
}

// consume stores counters advanced by a callback unless a control call
// replaced them in the meantime.
func (t *Transport) consume(oldCountIn, oldPreroll, countIn, preroll uint64) {
	t.countIn.CompareAndSwap(oldCountIn, countIn)
	t.recordingPreroll.CompareAndSwap(oldPreroll, preroll)
}

// advance moves the playhead by frames, wrapping at the loop end.
func (t *Transport) advance(snap processing.TransportSnapshot, frames uint32) {
	t.playhead.CompareAndSwap(snap.Playhead, snap.AddFrames(snap.Playhead, int64(frames)))
}
