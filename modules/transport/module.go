// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package transport provides the special clock node. It runs inline on the
// callback thread before any other node, publishes the musical position of
// the transport and renders a metronome click for downstream nodes.
package transport

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the patch arguments of a transport node.
type Params struct {
	// Click is the metronome level; zero disables the click.
	Click float64 `rtg:"click"`
	// ClickFrames is the length of one click.
	ClickFrames uint32 `rtg:"click_frames"`
}

// Position is a musical position. Bar and Beat are one-based.
type Position struct {
	Bar     uint64
	Beat    int
	Rolling bool
}

// Clock tracks the musical position of the transport.
type Clock struct {
	name          string
	framesPerBeat float64
	beatsPerBar   int
	params        Params
	buf           []float32

	bar     atomic.Uint64
	beat    atomic.Int32
	rolling atomic.Bool
	starts  atomic.Uint64
}

// New creates a Clock for the given tempo.
func New(name string, sampleRate, blockLength uint32, tempo registry.Tempo, p Params) (*Clock, error) {
	if tempo.BPM <= 0 || sampleRate == 0 {
		return nil, errors.New("transport clock needs a positive tempo and sample rate")
	}
	c := &Clock{
		name:          name,
		framesPerBeat: float64(sampleRate) * 60 / tempo.BPM,
		beatsPerBar:   max(tempo.BeatsPerBar, 1),
		params:        p,
		buf:           make([]float32, blockLength),
	}
	c.bar.Store(1)
	c.beat.Store(1)
	return c, nil
}

func (c *Clock) Name() string      { return c.name }
func (c *Clock) Latency() uint32   { return 0 }
func (c *Clock) Buffer() []float32 { return c.buf }

// Position returns the position published by the last sub-cycle.
func (c *Clock) Position() Position {
	return Position{
		Bar:     c.bar.Load(),
		Beat:    int(c.beat.Load()),
		Rolling: c.rolling.Load(),
	}
}

// Starts counts transitions into the rolling state.
func (c *Clock) Starts() uint64 {
	return c.starts.Load()
}

// Process implements processing.Processable.
func (c *Clock) Process(req processing.Request) {
	out := req.Time.Span(c.buf)
	clear(out)

	rolling := req.Transport.Rolling()
	if rolling && !c.rolling.Load() {
		c.starts.Add(1)
	}
	c.rolling.Store(rolling)
	if !rolling {
		return
	}

	pos := req.Time.GlobalStartWithOffset
	beats := uint64(float64(pos) / c.framesPerBeat)
	c.bar.Store(beats/uint64(c.beatsPerBar) + 1)
	c.beat.Store(int32(beats%uint64(c.beatsPerBar)) + 1)

	if c.params.Click == 0 || c.params.ClickFrames == 0 {
		return
	}
	for i := range out {
		p := float64(pos + uint64(i))
		beat := math.Floor(p / c.framesPerBeat)
		if p-beat*c.framesPerBeat >= float64(c.params.ClickFrames) {
			continue
		}
		level := c.params.Click
		if uint64(beat)%uint64(c.beatsPerBar) != 0 {
			level /= 2
		}
		out[i] = float32(level)
	}
}

// Register registers the transport processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("transport", &registry.RegisteredProcessor{
		NewParams: func() any { return &Params{ClickFrames: 64} },
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			c, err := New(args.Name, args.SampleRate, args.BlockLength, args.Tempo, *args.Params.(*Params))
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Special:   true,
		MaxInputs: 0,
	})
}
