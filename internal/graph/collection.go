// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/rtgraph/internal/node"
	"github.com/specialistvlad/rtgraph/internal/processing"
)

// Collection is one generation of the processing graph.
type Collection struct {
	nodes         []*node.Node
	byProcessable map[processing.Processable]*node.Node

	triggerNodes  []*node.Node
	terminalNodes []*node.Node
	specialNodes  []*node.Node
	// order is a topological order computed by Validate.
	order []*node.Node

	// prerollThresholds holds the distinct tail latencies of the nodes that
	// take part in no-roll, ascending.
	prerollThresholds []uint32
	maxRouteLatency   uint32

	finalized bool
}

// New creates an empty collection.
func New() *Collection {
	return &Collection{
		byProcessable: make(map[processing.Processable]*node.Node),
	}
}

// Add wraps p in a new node. Adding the same processable twice returns the
// existing node.
func (c *Collection) Add(p processing.Processable) (*node.Node, error) {
	if c.finalized {
		return nil, ErrFinalized
	}
	if p == nil {
		return nil, errors.New("processable is nil")
	}
	if n, ok := c.byProcessable[p]; ok {
		return n, nil
	}
	n := node.New(len(c.nodes), p)
	c.nodes = append(c.nodes, n)
	c.byProcessable[p] = n
	return n, nil
}

// AddSpecial adds p as a special node, run inline on the caller before the
// rest of the graph is dispatched.
func (c *Collection) AddSpecial(p processing.Processable) (*node.Node, error) {
	n, err := c.Add(p)
	if err != nil {
		return nil, err
	}
	n.MarkSpecial()
	return n, nil
}

// Connect adds the edge upstream -> downstream. Duplicate edges are ignored.
func (c *Collection) Connect(upstream, downstream *node.Node) error {
	if c.finalized {
		return ErrFinalized
	}
	if upstream == nil {
		return errors.New("source node not found")
	}
	if downstream == nil {
		return errors.New("destination node not found")
	}
	if !c.owns(upstream) {
		return fmt.Errorf("source node '%s' does not belong to this collection", upstream.Name())
	}
	if !c.owns(downstream) {
		return fmt.Errorf("destination node '%s' does not belong to this collection", downstream.Name())
	}
	if upstream == downstream {
		return fmt.Errorf("self-referential edge on node '%s'", upstream.Name())
	}
	if upstream.HasEdgeTo(downstream) {
		return nil
	}
	upstream.Connect(downstream)
	return nil
}

func (c *Collection) owns(n *node.Node) bool {
	id := n.ID()
	return id >= 0 && id < len(c.nodes) && c.nodes[id] == n
}

// Find returns the node wrapping p.
func (c *Collection) Find(p processing.Processable) (*node.Node, bool) {
	n, ok := c.byProcessable[p]
	return n, ok
}

// FindByName returns the first node whose processable has the given name.
func (c *Collection) FindByName(name string) (*node.Node, bool) {
	for _, n := range c.nodes {
		if n.Name() == name {
			return n, true
		}
	}
	return nil, false
}

// Validate checks that the edges form a DAG. It peels nodes off in dependency
// order on scratch counters, so it never touches per-cycle state.
func (c *Collection) Validate() error {
	_, err := c.topologicalOrder()
	return err
}

func (c *Collection) topologicalOrder() ([]*node.Node, error) {
	pending := make([]int32, len(c.nodes))
	order := make([]*node.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		pending[n.ID()] = n.InitRefcount()
		if n.InitRefcount() == 0 {
			order = append(order, n)
		}
	}

	for i := 0; i < len(order); i++ {
		for _, d := range order[i].Downstream() {
			pending[d.ID()]--
			if pending[d.ID()] == 0 {
				order = append(order, d)
			}
		}
	}

	if len(order) != len(c.nodes) {
		for _, n := range c.nodes {
			if pending[n.ID()] > 0 {
				return nil, fmt.Errorf("%w: involving node '%s'", ErrCycle, n.Name())
			}
		}
	}
	return order, nil
}

// Finalize validates the graph and computes everything the scheduler needs.
// It is idempotent.
func (c *Collection) Finalize() error {
	if c.finalized {
		return nil
	}

	order, err := c.topologicalOrder()
	if err != nil {
		return err
	}

	c.triggerNodes = c.triggerNodes[:0]
	c.terminalNodes = c.terminalNodes[:0]
	c.specialNodes = c.specialNodes[:0]
	for _, n := range c.nodes {
		n.Prepare()
		if n.IsTrigger() {
			c.triggerNodes = append(c.triggerNodes, n)
		}
		if n.IsTerminal() {
			c.terminalNodes = append(c.terminalNodes, n)
		}
		if n.IsSpecial() {
			c.specialNodes = append(c.specialNodes, n)
		}
	}

	c.computeLatencies(order)
	c.order = order
	c.finalized = true
	return nil
}

// computeLatencies walks the order forward for route latencies and backward
// for tail latencies.
func (c *Collection) computeLatencies(order []*node.Node) {
	route := make([]uint32, len(c.nodes))
	tail := make([]uint32, len(c.nodes))

	for _, n := range order {
		route[n.ID()] += n.PlaybackLatency()
		for _, d := range n.Downstream() {
			route[d.ID()] = max(route[d.ID()], route[n.ID()])
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		var longest uint32
		for _, d := range n.Downstream() {
			longest = max(longest, tail[d.ID()])
		}
		tail[n.ID()] = longest + n.PlaybackLatency()
	}

	c.maxRouteLatency = 0
	c.prerollThresholds = c.prerollThresholds[:0]
	for _, n := range c.nodes {
		n.SetLatencies(route[n.ID()], tail[n.ID()])
		if !n.IsSpecial() {
			c.prerollThresholds = append(c.prerollThresholds, n.TailLatency())
		}
	}
	slices.Sort(c.prerollThresholds)
	c.prerollThresholds = slices.Compact(c.prerollThresholds)
	for _, n := range c.terminalNodes {
		c.maxRouteLatency = max(c.maxRouteLatency, n.RouteLatency())
	}
}

// Finalized reports whether Finalize succeeded.
func (c *Collection) Finalized() bool { return c.finalized }

// Len returns the number of nodes.
func (c *Collection) Len() int { return len(c.nodes) }

// Nodes returns all nodes in insertion order. The slice must not be modified.
func (c *Collection) Nodes() []*node.Node { return c.nodes }

// Order returns the nodes in a topological order.
func (c *Collection) Order() []*node.Node { return c.order }

func (c *Collection) TriggerNodes() []*node.Node { return c.triggerNodes }
func (c *Collection) TerminalNodes() []*node.Node { return c.terminalNodes }
func (c *Collection) SpecialNodes() []*node.Node { return c.specialNodes }

// PrerollThresholds returns the distinct tail latencies of all non-special
// nodes in ascending order. A node leaves no-roll once the remaining latency
// preroll drops to its tail latency, so each value is a sub-cycle boundary
// during preroll.
func (c *Collection) PrerollThresholds() []uint32 { return c.prerollThresholds }

// MaxRouteLatency is the largest route latency over all terminal nodes.
func (c *Collection) MaxRouteLatency() uint32 { return c.maxRouteLatency }

// Sinks returns the terminal processables that expose an output buffer.
func (c *Collection) Sinks() []processing.Sink {
	var sinks []processing.Sink
	for _, n := range c.terminalNodes {
		if s, ok := n.Processable().(processing.Sink); ok {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// NodeInfo describes one node for status output.
type NodeInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Latency      uint32   `json:"latency" yaml:"latency"`
	RouteLatency uint32   `json:"route_latency" yaml:"route_latency"`
	TailLatency  uint32   `json:"tail_latency" yaml:"tail_latency"`
	Trigger      bool     `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Terminal     bool     `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Special      bool     `json:"special,omitempty" yaml:"special,omitempty"`
	Downstream   []string `json:"downstream,omitempty" yaml:"downstream,omitempty"`
}

// Describe lists the nodes in topological order, or in insertion order when
// the collection is not finalized.
func (c *Collection) Describe() []NodeInfo {
	nodes := c.order
	if !c.finalized {
		nodes = c.nodes
	}
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		info := NodeInfo{
			Name:         n.Name(),
			Latency:      n.PlaybackLatency(),
			RouteLatency: n.RouteLatency(),
			TailLatency:  n.TailLatency(),
			Trigger:      n.IsTrigger(),
			Terminal:     n.IsTerminal(),
			Special:      n.IsSpecial(),
		}
		for _, d := range n.Downstream() {
			info.Downstream = append(info.Downstream, d.Name())
		}
		out = append(out, info)
	}
	return out
}
