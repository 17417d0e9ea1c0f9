// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package patch

import (
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// evalContext exposes the engine format and tempo to attribute expressions.
func evalContext(opts Options) *hcl.EvalContext {
	framesPerBeat := 0.0
	if opts.Tempo.BPM > 0 {
		framesPerBeat = float64(opts.SampleRate) * 60 / opts.Tempo.BPM
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"sample_rate":   cty.NumberUIntVal(uint64(opts.SampleRate)),
			"block_length":  cty.NumberUIntVal(uint64(opts.BlockLength)),
			"bpm":           cty.NumberFloatVal(opts.Tempo.BPM),
			"beats_per_bar": cty.NumberIntVal(int64(opts.Tempo.BeatsPerBar)),
		},
		Functions: map[string]function.Function{
			"min":   stdlib.MinFunc,
			"max":   stdlib.MaxFunc,
			"floor": stdlib.FloorFunc,
			"ceil":  stdlib.CeilFunc,
			"ms":    framesFunc(float64(opts.SampleRate) / 1000),
			"beats": framesFunc(framesPerBeat),
		},
	}
}

// framesFunc converts a quantity to a whole number of frames.
func framesFunc(framesPerUnit float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "n", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var n float64
			if err := gocty.FromCtyValue(args[0], &n); err != nil {
				return cty.UnknownVal(cty.Number), err
			}
			return cty.NumberIntVal(int64(math.Round(n * framesPerUnit))), nil
		},
	})
}
