package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specialistvlad/rtgraph/internal/engine"
	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/scheduler"
	"github.com/specialistvlad/rtgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

func TestApply(t *testing.T) {
	tr := engine.NewTransport(engine.TransportOptions{SampleRate: 48000, BPM: 120})

	require.NoError(t, Apply(tr, Command{Action: "seek", Position: 480}))
	assert.Equal(t, uint64(480), tr.Playhead())

	require.NoError(t, Apply(tr, Command{Action: "roll"}))
	assert.Equal(t, processing.RollRequested, tr.State())

	require.NoError(t, Apply(tr, Command{Action: "pause"}))
	assert.Equal(t, processing.PauseRequested, tr.State())

	require.NoError(t, Apply(tr, Command{Action: "loop", Loop: true, Start: 0, End: 960}))
	assert.True(t, tr.Snapshot().LoopEnabled)

	assert.ErrorContains(t, Apply(tr, Command{Action: "loop", Loop: true, Start: 10, End: 5}), "loop end")
	assert.EqualError(t, Apply(tr, Command{Action: "rewind"}), `unknown action "rewind"`)
}

func TestHandleCommand(t *testing.T) {
	ctx, _ := testutil.Context(t)
	tr := engine.NewTransport(engine.TransportOptions{SampleRate: 48000, BPM: 120})
	s := New(ctx, Options{Interval: time.Second, Snapshot: func() Stats { return Stats{} }, Transport: tr})
	t.Cleanup(s.Close)

	require.NoError(t, s.handleCommand(map[string]any{"action": "seek", "position": float64(96)}))
	assert.Equal(t, uint64(96), tr.Playhead())

	assert.ErrorContains(t, s.handleCommand(), "missing command")
	assert.ErrorContains(t, s.handleCommand("roll"), "invalid command")

	disabled := New(ctx, Options{Interval: time.Second, Snapshot: func() Stats { return Stats{} }})
	t.Cleanup(disabled.Close)
	assert.EqualError(t, disabled.handleCommand(map[string]any{"action": "roll"}), "transport control is disabled")
}

func TestRun_RequiresInterval(t *testing.T) {
	ctx, _ := testutil.Context(t)
	s := New(ctx, Options{Snapshot: func() Stats { return Stats{} }})
	t.Cleanup(s.Close)

	assert.Error(t, s.Run(ctx))
}

func TestServer_BroadcastsStatsAndAcceptsCommands(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr := engine.NewTransport(engine.TransportOptions{SampleRate: 48000, BPM: 120})
	s := New(ctx, Options{
		Interval: 20 * time.Millisecond,
		Snapshot: func() Stats {
			return Stats{
				Time:      time.Now(),
				Engine:    engine.Snapshot{ID: "test-engine", PlayState: tr.State().String()},
				Scheduler: scheduler.Stats{Threads: 2},
			}
		},
		Transport: tr,
	})
	t.Cleanup(s.Close)

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", s.Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	go s.Run(ctx)

	received := make(chan map[string]any, 16)
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))
	manager := socket.NewManager(srv.URL, opts)
	io := manager.Socket("/", opts)
	io.On(types.EventName(EventStats), func(data ...any) {
		if len(data) == 0 {
			return
		}
		if m, ok := data[0].(map[string]any); ok {
			select {
			case received <- m:
			default:
			}
		}
	})
	io.Connect()
	t.Cleanup(func() { io.Disconnect() })

	var first map[string]any
	select {
	case first = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("no stats event received")
	}
	eng, ok := first["engine"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test-engine", eng["id"])

	io.Emit(EventTransport, map[string]any{"action": "roll"})

	assert.Eventually(t, func() bool {
		return tr.State() == processing.RollRequested
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Sent() > 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Clients())
}
