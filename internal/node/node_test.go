package node

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	a := New(0, testutil.NewRecorder("a", 0))
	b := New(1, testutil.NewRecorder("b", 0))
	c := New(2, testutil.NewRecorder("c", 0))

	a.Connect(c)
	b.Connect(c)

	assert.Equal(t, int32(2), c.InitRefcount())
	assert.True(t, a.IsTrigger())
	assert.False(t, c.IsTrigger())
	assert.True(t, a.HasEdgeTo(c))
	assert.False(t, c.HasEdgeTo(a))
	require.Len(t, a.Downstream(), 1)
	assert.Same(t, c, a.Downstream()[0])
}

func TestPrepare(t *testing.T) {
	a := New(0, testutil.NewRecorder("a", 7))
	b := New(1, testutil.NewRecorder("b", 0))
	a.Connect(b)
	a.Prepare()
	b.Prepare()

	assert.False(t, a.IsTerminal())
	assert.True(t, b.IsTerminal())
	assert.Equal(t, uint32(7), a.PlaybackLatency())
	assert.Equal(t, int32(1), b.Refcount())
}

func TestTrigger(t *testing.T) {
	t.Run("last producer wins and counter is restored", func(t *testing.T) {
		down := New(0, testutil.NewRecorder("down", 0))
		for i := 1; i <= 3; i++ {
			New(i, testutil.NewRecorder("up", 0)).Connect(down)
		}
		down.Prepare()

		assert.False(t, down.Trigger())
		assert.False(t, down.Trigger())
		assert.True(t, down.Trigger())
		assert.Equal(t, int32(3), down.Refcount())
	})

	t.Run("exactly one concurrent caller observes readiness", func(t *testing.T) {
		const producers = 64
		down := New(0, testutil.NewRecorder("down", 0))
		for i := 0; i < producers; i++ {
			New(i+1, testutil.NewRecorder("up", 0)).Connect(down)
		}
		down.Prepare()

		for round := 0; round < 50; round++ {
			var ready atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if down.Trigger() {
						ready.Add(1)
					}
				}()
			}
			wg.Wait()
			require.Equal(t, int32(1), ready.Load())
			require.Equal(t, int32(producers), down.Refcount())
		}
	})
}

func TestProcess(t *testing.T) {
	rolling := processing.TransportSnapshot{State: processing.Rolling}
	timeInfo := processing.TimeInfo{GlobalStart: 1000, GlobalStartWithOffset: 1010, LocalOffset: 10, Frames: 32}

	t.Run("non-terminal node in no-roll is not processed", func(t *testing.T) {
		rec := testutil.NewRecorder("a", 0)
		a := New(0, rec)
		a.Connect(New(1, testutil.NewRecorder("b", 0)))
		a.Prepare()
		a.SetLatencies(0, 5)

		a.Process(processing.Cycle{Time: timeInfo, Transport: rolling, RemainingPreroll: 10})
		assert.Equal(t, int64(0), rec.Calls())
	})

	t.Run("terminal node in no-roll outputs silence", func(t *testing.T) {
		rec := testutil.NewRecorder("out", 0)
		out := New(0, rec)
		out.Prepare()

		out.Process(processing.Cycle{Time: timeInfo, Transport: rolling, RemainingPreroll: 10})
		require.Len(t, rec.Requests(), 1)
		req := rec.Requests()[0]
		assert.True(t, req.NoRoll)
		assert.Equal(t, timeInfo, req.Time)
	})

	t.Run("rolling node start is compensated", func(t *testing.T) {
		rec := testutil.NewRecorder("src", 0)
		src := New(0, rec)
		src.Connect(New(1, testutil.NewRecorder("out", 0)))
		src.Prepare()
		src.SetLatencies(0, 48)

		src.Process(processing.Cycle{Time: timeInfo, Transport: rolling, RemainingPreroll: 16})
		require.Len(t, rec.Requests(), 1)
		req := rec.Requests()[0]
		assert.False(t, req.NoRoll)
		assert.Equal(t, uint64(1032), req.Time.GlobalStart)
		assert.Equal(t, uint64(1042), req.Time.GlobalStartWithOffset)
		assert.Equal(t, uint32(10), req.Time.LocalOffset)
	})

	t.Run("compensation wraps at loop end", func(t *testing.T) {
		looped := rolling
		looped.LoopEnabled = true
		looped.LoopStart = 0
		looped.LoopEnd = 1020

		rec := testutil.NewRecorder("src", 0)
		src := New(0, rec)
		src.Prepare()
		src.SetLatencies(0, 30)

		src.Process(processing.Cycle{Time: timeInfo, Transport: looped})
		req := rec.Requests()[0]
		assert.Equal(t, uint64(10), req.Time.GlobalStart)
		assert.Equal(t, uint64(20), req.Time.GlobalStartWithOffset)
	})

	t.Run("stopped transport is not compensated", func(t *testing.T) {
		rec := testutil.NewRecorder("src", 0)
		src := New(0, rec)
		src.Prepare()
		src.SetLatencies(0, 30)

		src.Process(processing.Cycle{Time: timeInfo})
		assert.Equal(t, timeInfo, rec.Requests()[0].Time)
	})

	t.Run("special node ignores preroll", func(t *testing.T) {
		rec := testutil.NewRecorder("clock", 0)
		clock := New(0, rec)
		clock.MarkSpecial()
		clock.Connect(New(1, testutil.NewRecorder("b", 0)))
		clock.Prepare()

		clock.Process(processing.Cycle{Time: timeInfo, RemainingPreroll: 100})
		assert.Equal(t, int64(1), rec.Calls())
	})
}
