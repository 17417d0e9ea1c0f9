// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processing

// PlayState is the transport's play state.
type PlayState int32

const (
	Paused PlayState = iota
	PauseRequested
	RollRequested
	Rolling
)

func (s PlayState) String() string {
	switch s {
	case Paused:
		return "paused"
	case PauseRequested:
		return "pause_requested"
	case RollRequested:
		return "roll_requested"
	case Rolling:
		return "rolling"
	default:
		return "unknown"
	}
}

// TransportSnapshot is an immutable view of the transport taken at the start
// of a callback.
type TransportSnapshot struct {
	State       PlayState
	Playhead    uint64
	LoopEnabled bool
	LoopStart   uint64
	LoopEnd     uint64
}

// Rolling reports whether the transport is playing.
func (t TransportSnapshot) Rolling() bool {
	return t.State == Rolling
}

// AddFrames moves pos by delta frames, wrapping around the loop range when
// looping is enabled and pos is before the loop end.
func (t TransportSnapshot) AddFrames(pos uint64, delta int64) uint64 {
	next := int64(pos) + delta
	if next < 0 {
		next = 0
	}
	if t.LoopEnabled && t.LoopEnd > t.LoopStart && pos < t.LoopEnd && next >= int64(t.LoopEnd) {
		loopLen := int64(t.LoopEnd - t.LoopStart)
		next = int64(t.LoopStart) + (next-int64(t.LoopEnd))%loopLen
	}
	return uint64(next)
}
