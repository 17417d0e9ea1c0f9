// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package node

import (
	"sync/atomic"

	"github.com/specialistvlad/rtgraph/internal/processing"
)

// Node is a single vertex in the processing graph.
type Node struct {
	id          int
	processable processing.Processable
	downstream  []*Node

	// initRefcount is the number of upstream producers.
	initRefcount int32
	// refcount is the number of producers not yet finished this cycle.
	refcount atomic.Int32

	playbackLatency uint32
	// routeLatency is the largest accumulated latency from any trigger node
	// up to and including this node.
	routeLatency uint32
	// tailLatency is the largest accumulated latency from this node to any
	// terminal node, including this node.
	tailLatency uint32

	terminal bool
	special  bool
	// skip is set for special nodes that already ran inline this cycle.
	skip atomic.Bool
}

// New creates a node with no edges.
func New(id int, p processing.Processable) *Node {
	return &Node{id: id, processable: p}
}

func (n *Node) ID() int { return n.id }
func (n *Node) Processable() processing.Processable { return n.processable }
func (n *Node) Downstream() []*Node { return n.downstream }
func (n *Node) InitRefcount() int32 { return n.initRefcount }
func (n *Node) PlaybackLatency() uint32 { return n.playbackLatency }
func (n *Node) RouteLatency() uint32 { return n.routeLatency }
func (n *Node) TailLatency() uint32 { return n.tailLatency }
func (n *Node) IsTerminal() bool { return n.terminal }
func (n *Node) IsSpecial() bool { return n.special }
func (n *Node) IsTrigger() bool { return n.initRefcount == 0 }

// Name returns the processable's name.
func (n *Node) Name() string {
	return n.processable.Name()
}

// Refcount atomically returns the number of producers still pending.
func (n *Node) Refcount() int32 {
	return n.refcount.Load()
}

// Connect adds an edge from n to down. It must only be used while the owning
// collection is being built.
func (n *Node) Connect(down *Node) {
	n.downstream = append(n.downstream, down)
	down.initRefcount++
}

// HasEdgeTo reports whether down is already a direct downstream of n.
func (n *Node) HasEdgeTo(down *Node) bool {
	for _, d := range n.downstream {
		if d == down {
			return true
		}
	}
	return false
}

// MarkSpecial flags the node to run inline on the caller before dispatch.
func (n *Node) MarkSpecial() {
	n.special = true
}

// Prepare resets the per-cycle state and the structural flags derived from
// the edges. It is called by the collection when it is finalized.
func (n *Node) Prepare() {
	n.terminal = len(n.downstream) == 0
	n.playbackLatency = n.processable.Latency()
	n.refcount.Store(n.initRefcount)
	n.skip.Store(false)
}

// SetLatencies stores the latencies computed over the whole graph.
func (n *Node) SetLatencies(route, tail uint32) {
	n.routeLatency = route
	n.tailLatency = tail
}

// Trigger records that one producer of n has finished. It returns true for
// exactly one caller per cycle, after restoring the counter for the next one.
func (n *Node) Trigger() bool {
	if n.refcount.Add(-1) != 0 {
		return false
	}
	n.refcount.Store(n.initRefcount)
	return true
}

// SetSkip sets or clears the per-cycle skip flag.
func (n *Node) SetSkip(skip bool) {
	n.skip.Store(skip)
}

// Skipped reports whether the node already ran this cycle.
func (n *Node) Skipped() bool {
	return n.skip.Load()
}

// Process runs the payload for one sub-cycle.
//
// While the latency preroll has not reached the node it does not roll:
// non-terminal nodes do nothing, terminal nodes are asked for silence. When
// the transport is rolling the start position is shifted by the node's
// remaining latency so that its output lines up at the terminal nodes.
func (n *Node) Process(c processing.Cycle) {
	req := processing.Request{Time: c.Time, Transport: c.Transport}

	if !n.special && n.tailLatency < c.RemainingPreroll {
		if !n.terminal {
			return
		}
		req.NoRoll = true
	}

	if c.Transport.Rolling() && !req.NoRoll {
		delta := int64(n.tailLatency) - int64(c.RemainingPreroll)
		req.Time.GlobalStart = c.Transport.AddFrames(c.Time.GlobalStart, delta)
		req.Time.GlobalStartWithOffset = c.Transport.AddFrames(c.Time.GlobalStartWithOffset, delta)
	}

	n.processable.Process(req)
}
