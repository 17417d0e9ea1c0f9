package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportSnapshot_AddFrames(t *testing.T) {
	t.Run("no loop", func(t *testing.T) {
		ts := TransportSnapshot{}
		assert.Equal(t, uint64(150), ts.AddFrames(100, 50))
		assert.Equal(t, uint64(0), ts.AddFrames(10, -50))
	})

	t.Run("wraps at loop end", func(t *testing.T) {
		ts := TransportSnapshot{LoopEnabled: true, LoopStart: 100, LoopEnd: 200}
		assert.Equal(t, uint64(110), ts.AddFrames(190, 20))
		assert.Equal(t, uint64(199), ts.AddFrames(190, 9))
		assert.Equal(t, uint64(100), ts.AddFrames(190, 10))
	})

	t.Run("position past loop end is not wrapped", func(t *testing.T) {
		ts := TransportSnapshot{LoopEnabled: true, LoopStart: 100, LoopEnd: 200}
		assert.Equal(t, uint64(260), ts.AddFrames(250, 10))
	})

	t.Run("disabled loop", func(t *testing.T) {
		ts := TransportSnapshot{LoopStart: 100, LoopEnd: 200}
		assert.Equal(t, uint64(210), ts.AddFrames(190, 20))
	})
}

func TestPlayState_String(t *testing.T) {
	assert.Equal(t, "rolling", Rolling.String())
	assert.Equal(t, "roll_requested", RollRequested.String())
	assert.Equal(t, "unknown", PlayState(42).String())
}

func TestTimeInfo_Span(t *testing.T) {
	buf := make([]float32, 8)

	assert.Len(t, TimeInfo{LocalOffset: 2, Frames: 4}.Span(buf), 4)
	assert.Len(t, TimeInfo{LocalOffset: 6, Frames: 4}.Span(buf), 2)
	assert.Empty(t, TimeInfo{LocalOffset: 10, Frames: 4}.Span(buf))
}
