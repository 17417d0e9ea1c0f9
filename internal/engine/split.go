// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

// SegmentKind tells why a sub-cycle boundary was placed.
type SegmentKind int

const (
	SegmentNormal SegmentKind = iota
	SegmentLatencyPreroll
	SegmentCountIn
	SegmentRecordingPreroll
	numSegmentKinds
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentNormal:
		return "normal"
	case SegmentLatencyPreroll:
		return "latency_preroll"
	case SegmentCountIn:
		return "countin"
	case SegmentRecordingPreroll:
		return "recording_preroll"
	default:
		return "unknown"
	}
}

// Segment is one sub-cycle of a callback.
type Segment struct {
	Kind   SegmentKind
	Offset uint32
	Frames uint32
	// RemainingPreroll is the latency preroll left when the segment starts.
	RemainingPreroll uint32
}

// Counters are the frame counters that outlive a single callback.
type Counters struct {
	LatencyPreroll   uint32
	CountIn          uint64
	RecordingPreroll uint64
}

// Split divides a callback of frames into segments appended to dst and
// consumes the counters accordingly. thresholds are the tail latencies at
// which nodes leave no-roll: during latency preroll no segment crosses the
// point where the remaining preroll drops to a threshold. Segment frames
// always add up to frames.
func Split(dst []Segment, frames uint32, c *Counters, thresholds []uint32) []Segment {
	remaining := frames

	for c.LatencyPreroll > 0 && remaining > 0 {
		n := min(remaining, c.LatencyPreroll)
		for _, t := range thresholds {
			// Nodes that stay silent for the whole segment, or that are
			// already rolling, impose no boundary.
			if c.LatencyPreroll > t+n || c.LatencyPreroll <= t {
				continue
			}
			n = min(n, c.LatencyPreroll-t)
		}
		dst = append(dst, Segment{
			Kind:             SegmentLatencyPreroll,
			Offset:           frames - remaining,
			Frames:           n,
			RemainingPreroll: c.LatencyPreroll,
		})
		c.LatencyPreroll -= n
		remaining -= n
	}

	if remaining > 0 && c.CountIn > 0 {
		n := uint32(min(uint64(remaining), c.CountIn))
		dst = append(dst, Segment{Kind: SegmentCountIn, Offset: frames - remaining, Frames: n})
		c.CountIn -= uint64(n)
		remaining -= n
	}

	if remaining > 0 && c.CountIn == 0 && c.RecordingPreroll > 0 {
		n := uint32(min(uint64(remaining), c.RecordingPreroll))
		dst = append(dst, Segment{Kind: SegmentRecordingPreroll, Offset: frames - remaining, Frames: n})
		c.RecordingPreroll -= uint64(n)
		remaining -= n
	}

	if remaining > 0 {
		dst = append(dst, Segment{Kind: SegmentNormal, Offset: frames - remaining, Frames: remaining})
	}
	return dst
}
