// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package gain scales a single input.
package gain

import (
	"context"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the patch arguments of a gain node.
type Params struct {
	Gain float64 `rtg:"gain"`
}

// Gain multiplies its input by a constant factor.
type Gain struct {
	name    string
	latency uint32
	gain    float32
	in      []float32
	buf     []float32
}

// New creates a Gain reading from in.
func New(name string, in []float32, latency uint32, gain float64) *Gain {
	return &Gain{
		name:    name,
		latency: latency,
		gain:    float32(gain),
		in:      in,
		buf:     make([]float32, len(in)),
	}
}

func (g *Gain) Name() string      { return g.name }
func (g *Gain) Latency() uint32   { return g.latency }
func (g *Gain) Buffer() []float32 { return g.buf }

// Process implements processing.Processable.
func (g *Gain) Process(req processing.Request) {
	in := req.Time.Span(g.in)
	out := req.Time.Span(g.buf)
	for i := range out {
		out[i] = in[i] * g.gain
	}
}

// Register registers the gain processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("gain", &registry.RegisteredProcessor{
		NewParams: func() any { return &Params{Gain: 1} },
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			ins, err := args.InputBuffers()
			if err != nil {
				return nil, err
			}
			return New(args.Name, ins[0], args.Latency, args.Params.(*Params).Gain), nil
		},
		MinInputs: 1,
		MaxInputs: 1,
	})
}
