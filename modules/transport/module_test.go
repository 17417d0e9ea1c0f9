package transport

import (
	"context"
	"testing"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(state processing.PlayState, pos uint64, frames uint32) processing.Request {
	return processing.Request{
		Time:      processing.TimeInfo{GlobalStart: pos, GlobalStartWithOffset: pos, Frames: frames},
		Transport: processing.TransportSnapshot{State: state, Playhead: pos},
	}
}

func TestClock_Position(t *testing.T) {
	// 120 BPM at 48 kHz is 24000 frames per beat.
	c, err := New("clock", 48000, 8, registry.Tempo{BPM: 120, BeatsPerBar: 4}, Params{})
	require.NoError(t, err)
	assert.Equal(t, Position{Bar: 1, Beat: 1}, c.Position())

	c.Process(request(processing.Rolling, 24000*5, 8))
	assert.Equal(t, Position{Bar: 2, Beat: 2, Rolling: true}, c.Position())

	c.Process(request(processing.Paused, 0, 8))
	assert.False(t, c.Position().Rolling)
	assert.Equal(t, uint64(2), c.Position().Bar)
}

func TestClock_CountsStarts(t *testing.T) {
	c, err := New("clock", 48000, 8, registry.Tempo{BPM: 120, BeatsPerBar: 4}, Params{})
	require.NoError(t, err)

	c.Process(request(processing.Rolling, 0, 8))
	c.Process(request(processing.Rolling, 8, 8))
	c.Process(request(processing.PauseRequested, 16, 8))
	c.Process(request(processing.Rolling, 16, 8))

	assert.Equal(t, uint64(2), c.Starts())
}

func TestClock_Click(t *testing.T) {
	c, err := New("clock", 48000, 4, registry.Tempo{BPM: 120, BeatsPerBar: 4}, Params{Click: 1, ClickFrames: 2})
	require.NoError(t, err)

	c.Process(request(processing.Rolling, 0, 4))
	assert.Equal(t, []float32{1, 1, 0, 0}, c.Buffer())

	c.Process(request(processing.Rolling, 24000-1, 4))
	assert.Equal(t, []float32{0, 0.5, 0.5, 0}, c.Buffer())

	c.Process(request(processing.Paused, 0, 4))
	assert.Equal(t, []float32{0, 0, 0, 0}, c.Buffer())
}

func TestRegister_Special(t *testing.T) {
	r := registry.NewWithModules(&Module{})

	p, ok := r.Lookup("transport")
	require.True(t, ok)
	assert.True(t, p.Special)

	_, err := r.Build(context.Background(), "transport", registry.Args{Name: "clock", SampleRate: 48000}, nil)
	assert.ErrorContains(t, err, "positive tempo")
}
