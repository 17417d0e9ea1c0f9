// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package delay provides a fixed sample delay that reports its length as
// playback latency.
package delay

import (
	"context"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the patch arguments of a delay node.
type Params struct {
	Frames uint32 `rtg:"frames,required"`
}

// Delay holds its input back by a fixed number of frames.
type Delay struct {
	name    string
	extra   uint32
	in      []float32
	buf     []float32
	line    []float32
	linePos int
}

// New creates a Delay of frames reading from in. extra is added to the
// reported latency.
func New(name string, in []float32, frames, extra uint32) *Delay {
	return &Delay{
		name:  name,
		extra: extra,
		in:    in,
		buf:   make([]float32, len(in)),
		line:  make([]float32, frames),
	}
}

func (d *Delay) Name() string      { return d.name }
func (d *Delay) Buffer() []float32 { return d.buf }

// Latency is the delay length plus any declared extra latency.
func (d *Delay) Latency() uint32 { return uint32(len(d.line)) + d.extra }

// Process implements processing.Processable.
func (d *Delay) Process(req processing.Request) {
	in := req.Time.Span(d.in)
	out := req.Time.Span(d.buf)
	if len(d.line) == 0 {
		copy(out, in)
		return
	}
	for i := range out {
		out[i] = d.line[d.linePos]
		d.line[d.linePos] = in[i]
		d.linePos++
		if d.linePos == len(d.line) {
			d.linePos = 0
		}
	}
}

// Register registers the delay processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("delay", &registry.RegisteredProcessor{
		NewParams: func() any { return &Params{} },
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			ins, err := args.InputBuffers()
			if err != nil {
				return nil, err
			}
			return New(args.Name, ins[0], args.Params.(*Params).Frames, args.Latency), nil
		},
		MinInputs: 1,
		MaxInputs: 1,
	})
}
