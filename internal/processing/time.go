// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processing

// TimeInfo describes the slice of the timeline a single sub-cycle covers.
// It is built once per sub-cycle and never mutated while nodes run.
type TimeInfo struct {
	// GlobalStart is the timeline position at the start of the callback.
	GlobalStart uint64
	// GlobalStartWithOffset is GlobalStart plus LocalOffset.
	GlobalStartWithOffset uint64
	// LocalOffset is the offset of this sub-cycle inside the callback buffer.
	LocalOffset uint32
	// Frames is the number of frames to process in this sub-cycle.
	Frames uint32
}

// End returns the buffer offset one past the last frame of the sub-cycle.
func (t TimeInfo) End() uint32 {
	return t.LocalOffset + t.Frames
}

// Span returns the part of buf covered by the sub-cycle, clamped to buf.
func (t TimeInfo) Span(buf []float32) []float32 {
	start := min(int(t.LocalOffset), len(buf))
	end := min(int(t.End()), len(buf))
	return buf[start:end]
}

// Cycle is everything a node needs to run once.
type Cycle struct {
	Time      TimeInfo
	Transport TransportSnapshot
	// RemainingPreroll is the latency preroll left before this sub-cycle.
	RemainingPreroll uint32
}

// Request is what a Processable receives. The scheduler derives it from the
// Cycle, compensating the start position for the node's latency.
type Request struct {
	Time      TimeInfo
	Transport TransportSnapshot
	// NoRoll is set when the node must output silence because the latency
	// preroll has not yet reached it.
	NoRoll bool
}
