// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package monitor publishes engine statistics to socket.io clients and
// accepts transport commands from them.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/engine"
	"github.com/specialistvlad/rtgraph/internal/scheduler"
	sio "github.com/zishang520/socket.io/v2/socket"
)

// Event names.
const (
	EventStats     = "stats"
	EventTransport = "transport"
	EventError     = "command_error"
)

// Stats is the payload of a stats event.
type Stats struct {
	Time      time.Time       `json:"time"`
	Engine    engine.Snapshot `json:"engine"`
	Scheduler scheduler.Stats `json:"scheduler"`
}

// Command is a transport command sent by a client.
type Command struct {
	// Action is one of roll, pause, seek or loop.
	Action  string `mapstructure:"action"`
	CountIn bool   `mapstructure:"countin"`
	Preroll bool   `mapstructure:"preroll"`
	// Position is the seek target in frames.
	Position uint64 `mapstructure:"position"`
	Loop     bool   `mapstructure:"loop"`
	Start    uint64 `mapstructure:"start"`
	End      uint64 `mapstructure:"end"`
}

// Options configures a Server.
type Options struct {
	Interval time.Duration
	// Snapshot collects the current statistics.
	Snapshot func() Stats
	// Transport receives client commands. Commands are rejected when nil.
	Transport *engine.Transport
}

// Server broadcasts Stats to every connected client at a fixed interval.
type Server struct {
	opts    Options
	io      *sio.Server
	logger  *slog.Logger
	clients atomic.Int64
	sent    atomic.Uint64
}

// New creates a Server. Mount Handler under /socket.io/ and call Run.
func New(ctx context.Context, opts Options) *Server {
	s := &Server{
		opts:   opts,
		io:     sio.NewServer(nil, nil),
		logger: ctxlog.FromContext(ctx).With("component", "monitor"),
	}
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*sio.Socket)
		n := s.clients.Add(1)
		s.logger.Debug("Monitor client connected.", "sid", client.Id(), "clients", n)

		client.Emit(EventStats, s.opts.Snapshot())
		client.On(EventTransport, func(args ...any) {
			if err := s.handleCommand(args...); err != nil {
				s.logger.Warn("Rejected transport command.", "sid", client.Id(), "error", err)
				client.Emit(EventError, err.Error())
			}
		})
		client.On("disconnect", func(...any) {
			n := s.clients.Add(-1)
			s.logger.Debug("Monitor client disconnected.", "sid", client.Id(), "clients", n)
		})
	})
	return s
}

// Handler serves the socket.io protocol.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// Sent returns the number of broadcasts made.
func (s *Server) Sent() uint64 {
	return s.sent.Load()
}

// Run broadcasts until ctx is canceled. Ticks without clients are skipped.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Interval <= 0 {
		return errors.New("monitor interval must be positive")
	}
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.clients.Load() == 0 {
				continue
			}
			s.io.Emit(EventStats, s.opts.Snapshot())
			s.sent.Add(1)
		}
	}
}

// Close disconnects all clients.
func (s *Server) Close() {
	s.io.Close(nil)
}

func (s *Server) handleCommand(args ...any) error {
	if s.opts.Transport == nil {
		return errors.New("transport control is disabled")
	}
	if len(args) == 0 {
		return errors.New("missing command")
	}
	var cmd Command
	if err := mapstructure.WeakDecode(args[0], &cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	return Apply(s.opts.Transport, cmd)
}

// Apply executes cmd on t.
func Apply(t *engine.Transport, cmd Command) error {
	switch cmd.Action {
	case "roll":
		t.RequestRoll(cmd.CountIn, cmd.Preroll)
	case "pause":
		t.RequestPause()
	case "seek":
		t.Seek(cmd.Position)
	case "loop":
		if cmd.Loop && cmd.End <= cmd.Start {
			return errors.New("loop end must be after loop start")
		}
		t.SetLoop(cmd.Loop, cmd.Start, cmd.End)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}
