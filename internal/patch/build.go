// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package patch

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/graph"
	"github.com/specialistvlad/rtgraph/internal/node"
	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
)

// Build creates the processables of p and wires them into a finalized
// collection. Inputs are built before the nodes that read them.
func (b *Builder) Build(ctx context.Context, p *Patch) (*graph.Collection, error) {
	logger := ctxlog.FromContext(ctx)

	order, err := buildOrder(p.Decls)
	if err != nil {
		return nil, err
	}

	c := graph.New()
	built := make(map[string]*node.Node, len(order))
	for _, d := range order {
		inputs := make([]processing.Processable, len(d.Inputs))
		for i, in := range d.Inputs {
			inputs[i] = built[in].Processable()
		}
		args := registry.Args{
			Name:        d.Name,
			SampleRate:  b.opts.SampleRate,
			BlockLength: b.opts.BlockLength,
			Tempo:       b.opts.Tempo,
			Latency:     d.Latency,
			Inputs:      inputs,
		}
		proc, err := b.reg.Build(ctx, d.Kind, args, d.Attrs)
		if err != nil {
			return nil, err
		}

		var n *node.Node
		if rp, _ := b.reg.Lookup(d.Kind); rp.Special {
			n, err = c.AddSpecial(proc)
		} else {
			n, err = c.Add(proc)
		}
		if err != nil {
			return nil, fmt.Errorf("adding node '%s': %w", d.Name, err)
		}
		for _, in := range d.Inputs {
			if err := c.Connect(built[in], n); err != nil {
				return nil, fmt.Errorf("connecting '%s' to '%s': %w", in, d.Name, err)
			}
		}
		built[d.Name] = n
		logger.Debug("Built patch node.", "node", d.Name, "kind", d.Kind, "inputs", d.Inputs)
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	logger.Info("🧩 Patch built.", "nodes", c.Len(), "terminal_nodes", len(c.TerminalNodes()), "max_route_latency", c.MaxRouteLatency())
	return c, nil
}

// BuildFiles loads and builds the patch found in paths.
func (b *Builder) BuildFiles(ctx context.Context, paths ...string) (*graph.Collection, error) {
	p, err := b.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, p)
}

// buildOrder sorts declarations so that every node follows its inputs.
func buildOrder(decls []*Decl) ([]*Decl, error) {
	byName := make(map[string]*Decl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	pending := make(map[string]int, len(decls))
	consumers := make(map[string][]*Decl)
	for _, d := range decls {
		for _, in := range d.Inputs {
			if _, ok := byName[in]; !ok {
				return nil, fmt.Errorf("node '%s' references unknown input 'node.%s'", d.Name, in)
			}
			consumers[in] = append(consumers[in], d)
		}
		pending[d.Name] = len(d.Inputs)
	}

	order := make([]*Decl, 0, len(decls))
	for _, d := range decls {
		if pending[d.Name] == 0 {
			order = append(order, d)
		}
	}
	for i := 0; i < len(order); i++ {
		for _, c := range consumers[order[i].Name] {
			pending[c.Name]--
			if pending[c.Name] == 0 {
				order = append(order, c)
			}
		}
	}

	if len(order) < len(decls) {
		for _, d := range decls {
			if pending[d.Name] > 0 {
				return nil, fmt.Errorf("%w: involving node '%s'", graph.ErrCycle, d.Name)
			}
		}
	}
	return order, nil
}
