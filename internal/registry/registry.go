// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that all built-in modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Factory builds a processable for one patch node.
type Factory func(ctx context.Context, args Args) (processing.Processable, error)

// Tempo is the musical time base handed to processors that need it.
type Tempo struct {
	BPM         float64
	BeatsPerBar int
}

// Args is everything a factory gets to build one node.
type Args struct {
	Name        string
	SampleRate  uint32
	BlockLength uint32
	Tempo       Tempo
	// Latency is extra playback latency declared on the node in the patch.
	// Processors add it to their own latency.
	Latency uint32
	// Params is the value returned by the processor's NewParams, populated
	// from the node's attributes. It is nil when NewParams is nil.
	Params any
	// Inputs are the already built upstream processables, in patch order.
	Inputs []processing.Processable
}

// InputBuffers returns the output buffers of all inputs.
func (a Args) InputBuffers() ([][]float32, error) {
	bufs := make([][]float32, 0, len(a.Inputs))
	for _, in := range a.Inputs {
		b, ok := in.(processing.Buffered)
		if !ok {
			return nil, fmt.Errorf("input '%s' of node '%s' has no output buffer", in.Name(), a.Name)
		}
		bufs = append(bufs, b.Buffer())
	}
	return bufs, nil
}

// RegisteredProcessor holds the compiled parts of one processor kind.
type RegisteredProcessor struct {
	// NewParams returns a pointer to a parameter struct holding defaults.
	// Fields tagged `rtg:"name"` are bound to node attributes.
	NewParams func() any
	New       Factory
	// Special processors run inline on the callback thread before dispatch.
	Special bool
	// MinInputs and MaxInputs bound the number of upstream nodes. A negative
	// MaxInputs means unbounded.
	MinInputs int
	MaxInputs int
}

// Registry holds the registered processors for a single application
// instance.
type Registry struct {
	processors map[string]*RegisteredProcessor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{processors: make(map[string]*RegisteredProcessor)}
}

// NewWithModules creates a Registry populated by mods.
func NewWithModules(mods ...Module) *Registry {
	r := New()
	for _, m := range mods {
		m.Register(r)
	}
	return r
}

// RegisterProcessor registers a processor kind.
func (r *Registry) RegisterProcessor(kind string, p *RegisteredProcessor) {
	if _, exists := r.processors[kind]; exists {
		panic(fmt.Sprintf("processor with kind '%s' already registered", kind))
	}
	if p == nil || p.New == nil {
		panic(fmt.Sprintf("processor with kind '%s' has no factory", kind))
	}
	slog.Debug("Registering processor.", "kind", kind)
	r.processors[kind] = p
}

// Lookup returns the processor registered for kind.
func (r *Registry) Lookup(kind string) (*RegisteredProcessor, bool) {
	p, ok := r.processors[kind]
	return p, ok
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.processors))
	for k := range r.processors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Build creates a processable of the given kind. attrs are the node's
// evaluated attributes, bound to the processor's parameter struct.
func (r *Registry) Build(ctx context.Context, kind string, args Args, attrs map[string]cty.Value) (processing.Processable, error) {
	p, ok := r.processors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown processor kind '%s' for node '%s'", kind, args.Name)
	}
	if n := len(args.Inputs); n < p.MinInputs || (p.MaxInputs >= 0 && n > p.MaxInputs) {
		return nil, fmt.Errorf("node '%s' of kind '%s' has %d inputs, %s", args.Name, kind, n, inputRange(p))
	}

	if p.NewParams != nil {
		params := p.NewParams()
		if err := DecodeParams(attrs, params); err != nil {
			return nil, fmt.Errorf("node '%s' of kind '%s': %w", args.Name, kind, err)
		}
		args.Params = params
	} else if len(attrs) > 0 {
		return nil, fmt.Errorf("node '%s' of kind '%s' takes no arguments", args.Name, kind)
	}

	proc, err := p.New(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("failed to build node '%s' of kind '%s': %w", args.Name, kind, err)
	}
	return proc, nil
}

func inputRange(p *RegisteredProcessor) string {
	switch {
	case p.MaxInputs < 0:
		return fmt.Sprintf("want at least %d", p.MinInputs)
	case p.MinInputs == p.MaxInputs:
		return fmt.Sprintf("want exactly %d", p.MinInputs)
	default:
		return fmt.Sprintf("want between %d and %d", p.MinInputs, p.MaxInputs)
	}
}
