// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processing

// Processable is the unit of work carried by a graph node.
//
// Process is called at most once per sub-cycle and never concurrently for the
// same value. It must not block on locks held by other nodes.
type Processable interface {
	Name() string
	// Latency is the node's own playback latency in frames.
	Latency() uint32
	Process(req Request)
}

// Buffered is implemented by processables that expose their output to
// downstream nodes. The buffer is sized to the engine block length and
// indexed by the request's local offset.
type Buffered interface {
	Buffer() []float32
}

// Sink is implemented by terminal processables whose output the engine reads
// once all sub-cycles of a callback have run.
type Sink interface {
	Processable
	Buffered
	// Peak returns the absolute peak of the last completed callback.
	Peak() float32
}
