// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package mix sums any number of inputs.
package mix

import (
	"context"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the patch arguments of a mix node.
type Params struct {
	Gain float64 `rtg:"gain"`
}

// Mixer sums its inputs and scales the result.
type Mixer struct {
	name    string
	latency uint32
	gain    float32
	ins     [][]float32
	buf     []float32
}

// New creates a Mixer over ins, writing blockLength frames.
func New(name string, ins [][]float32, blockLength, latency uint32, gain float64) *Mixer {
	return &Mixer{
		name:    name,
		latency: latency,
		gain:    float32(gain),
		ins:     ins,
		buf:     make([]float32, blockLength),
	}
}

func (m *Mixer) Name() string      { return m.name }
func (m *Mixer) Latency() uint32   { return m.latency }
func (m *Mixer) Buffer() []float32 { return m.buf }

// Process implements processing.Processable.
func (m *Mixer) Process(req processing.Request) {
	out := req.Time.Span(m.buf)
	clear(out)
	for _, b := range m.ins {
		in := req.Time.Span(b)
		for i := range min(len(in), len(out)) {
			out[i] += in[i]
		}
	}
	for i := range out {
		out[i] *= m.gain
	}
}

// Register registers the mix processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("mix", &registry.RegisteredProcessor{
		NewParams: func() any { return &Params{Gain: 1} },
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			ins, err := args.InputBuffers()
			if err != nil {
				return nil, err
			}
			return New(args.Name, ins, args.BlockLength, args.Latency, args.Params.(*Params).Gain), nil
		},
		MinInputs: 1,
		MaxInputs: -1,
	})
}
