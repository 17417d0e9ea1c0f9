package engine

import (
	"testing"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/stretchr/testify/assert"
)

func TestTransport_StateMachine(t *testing.T) {
	tr := NewTransport(TransportOptions{SampleRate: 48000, BPM: 120})
	assert.Equal(t, processing.Paused, tr.State())
	assert.Equal(t, 4, tr.BeatsPerBar())
	assert.Equal(t, uint64(96000), tr.FramesPerBar())

	tr.RequestRoll(false, false)
	assert.Equal(t, processing.RollRequested, tr.State())
	assert.True(t, tr.prepare(), "roll request without count-in starts rolling")
	assert.Equal(t, processing.Rolling, tr.State())
	assert.False(t, tr.prepare())

	tr.RequestPause()
	assert.False(t, tr.prepare())
	assert.Equal(t, processing.Paused, tr.State())
}

func TestTransport_RecordingPrerollClampsAtZero(t *testing.T) {
	tr := NewTransport(TransportOptions{SampleRate: 1000, BPM: 60, BeatsPerBar: 1, PrerollBars: 2})
	tr.Seek(500)
	tr.RequestRoll(false, true)

	countIn, preroll := tr.counters()
	assert.Equal(t, uint64(0), countIn)
	assert.Equal(t, uint64(500), preroll)
	assert.Equal(t, uint64(0), tr.Playhead())
}

func TestTransport_ConsumeKeepsNewerRequest(t *testing.T) {
	tr := NewTransport(TransportOptions{SampleRate: 1000, BPM: 60, BeatsPerBar: 1, CountInBars: 1})
	tr.RequestRoll(true, false)
	countIn, preroll := tr.counters()

	// A new request lands while the callback is running.
	tr.RequestRoll(true, false)
	tr.countIn.Store(1234)
	tr.consume(countIn, preroll, 0, 0)

	got, _ := tr.counters()
	assert.Equal(t, uint64(1234), got)
}

func TestTransport_Snapshot(t *testing.T) {
	tr := NewTransport(TransportOptions{LoopEnabled: true, LoopStart: 10, LoopEnd: 20})
	tr.Seek(15)
	assert.Equal(t, processing.TransportSnapshot{
		State:       processing.Paused,
		Playhead:    15,
		LoopEnabled: true,
		LoopStart:   10,
		LoopEnd:     20,
	}, tr.Snapshot())

	tr.SetLoop(false, 0, 0)
	assert.False(t, tr.Snapshot().LoopEnabled)
	assert.Equal(t, 0.0, NewTransport(TransportOptions{}).BPM())
	assert.Equal(t, uint64(0), NewTransport(TransportOptions{}).FramesPerBar())
}
