// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package sine provides a timeline-locked sine oscillator source.
package sine

import (
	"context"
	"errors"
	"math"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the patch arguments of a sine node.
type Params struct {
	Frequency float64 `rtg:"frequency,required"`
	Amplitude float64 `rtg:"amplitude"`
}

// Oscillator renders a sine whose phase follows the timeline position, so
// the same position always yields the same sample.
type Oscillator struct {
	name       string
	latency    uint32
	sampleRate float64
	params     Params
	buf        []float32
}

// New creates an oscillator writing into a block-sized buffer.
func New(name string, sampleRate, blockLength, latency uint32, p Params) *Oscillator {
	return &Oscillator{
		name:       name,
		latency:    latency,
		sampleRate: float64(sampleRate),
		params:     p,
		buf:        make([]float32, blockLength),
	}
}

func (o *Oscillator) Name() string      { return o.name }
func (o *Oscillator) Latency() uint32   { return o.latency }
func (o *Oscillator) Buffer() []float32 { return o.buf }

// Process renders the request's frames. It is silent while the transport is
// not rolling.
func (o *Oscillator) Process(req processing.Request) {
	out := req.Time.Span(o.buf)
	if req.NoRoll || !req.Transport.Rolling() {
		clear(out)
		return
	}
	pos := req.Time.GlobalStartWithOffset
	step := 2 * math.Pi * o.params.Frequency / o.sampleRate
	for i := range out {
		out[i] = float32(o.params.Amplitude * math.Sin(step*float64(pos+uint64(i))))
	}
}

func newOscillator(_ context.Context, args registry.Args) (processing.Processable, error) {
	p := args.Params.(*Params)
	if args.SampleRate == 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if p.Frequency <= 0 || p.Frequency >= float64(args.SampleRate)/2 {
		return nil, errors.New("frequency must be between 0 and the Nyquist frequency")
	}
	return New(args.Name, args.SampleRate, args.BlockLength, args.Latency, *p), nil
}

// Register registers the sine processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("sine", &registry.RegisteredProcessor{
		NewParams: func() any { return &Params{Amplitude: 1} },
		New:       newOscillator,
	})
}
