// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package output provides the terminal sink that collects a callback's
// audio.
package output

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Output sums its inputs into the callback buffer and tracks the peak.
type Output struct {
	name    string
	latency uint32
	ins     [][]float32
	buf     []float32

	// running is the peak of the callback in progress.
	running  float32
	peakBits atomic.Uint32
	noRoll   atomic.Uint64
}

// New creates an Output over ins with a block-sized buffer.
func New(name string, ins [][]float32, blockLength, latency uint32) *Output {
	return &Output{
		name:    name,
		latency: latency,
		ins:     ins,
		buf:     make([]float32, blockLength),
	}
}

func (o *Output) Name() string      { return o.name }
func (o *Output) Latency() uint32   { return o.latency }
func (o *Output) Buffer() []float32 { return o.buf }

// Peak returns the absolute peak of the last callback.
func (o *Output) Peak() float32 {
	return math.Float32frombits(o.peakBits.Load())
}

// NoRollFrames returns how many frames were silenced by no-roll requests.
func (o *Output) NoRollFrames() uint64 {
	return o.noRoll.Load()
}

// Process implements processing.Processable. A sub-cycle at offset zero
// starts a new callback.
func (o *Output) Process(req processing.Request) {
	if req.Time.LocalOffset == 0 {
		o.running = 0
	}
	out := req.Time.Span(o.buf)
	clear(out)
	if req.NoRoll {
		o.noRoll.Add(uint64(len(out)))
	} else {
		for _, b := range o.ins {
			in := req.Time.Span(b)
			for i := range min(len(in), len(out)) {
				out[i] += in[i]
			}
		}
		for _, v := range out {
			o.running = max(o.running, float32(math.Abs(float64(v))))
		}
	}
	o.peakBits.Store(math.Float32bits(o.running))
}

// Register registers the output processor.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("output", &registry.RegisteredProcessor{
		New: func(_ context.Context, args registry.Args) (processing.Processable, error) {
			ins, err := args.InputBuffers()
			if err != nil {
				return nil, err
			}
			return New(args.Name, ins, args.BlockLength, args.Latency), nil
		},
		MinInputs: 1,
		MaxInputs: -1,
	})
}
