// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/monitor"
)

// statusRouter serves health, metrics, the live graph and the monitor.
func (a *App) statusRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	r.Get("/graph", a.graphHandler)
	r.Get("/stats", a.statsHandler)
	r.Post("/transport/{action}", a.transportHandler)
	if a.monitor != nil {
		r.Handle("/socket.io/*", a.monitor.Handler())
	}
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) graphHandler(w http.ResponseWriter, _ *http.Request) {
	g := a.sched.Graph()
	if g == nil {
		http.Error(w, "no graph installed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation":        a.sched.Generation(),
		"max_route_latency": g.MaxRouteLatency(),
		"nodes":             g.Describe(),
	})
}

func (a *App) statsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.stats())
}

// transportHandler applies a transport command. Options come from the query
// string: countin, preroll, position, loop, start and end.
func (a *App) transportHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmd := monitor.Command{
		Action:  chi.URLParam(r, "action"),
		CountIn: q.Get("countin") == "true",
		Preroll: q.Get("preroll") == "true",
		Loop:    q.Get("loop") == "true",
	}
	for name, dst := range map[string]*uint64{"position": &cmd.Position, "start": &cmd.Start, "end": &cmd.End} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s %q", name, v), http.StatusBadRequest)
			return
		}
		*dst = n
	}

	if err := monitor.Apply(a.transport, cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.logger.Info("Transport command applied.", "action", cmd.Action, "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{
		"play_state": a.transport.State().String(),
		"playhead":   a.transport.Playhead(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// startStatusServer listens on the monitor address and serves the status
// router in the background.
func (a *App) startStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if !a.engineCfg.Monitor.Enabled {
		logger.Debug("Status server not started: disabled.")
		return nil
	}

	ln, err := net.Listen("tcp", a.engineCfg.Monitor.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.engineCfg.Monitor.Address, err)
	}
	a.httpServer = &http.Server{
		Handler:           a.statusRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	addr := ln.Addr().String()
	a.statusAddr.Store(addr)

	go func() {
		logger.Info("🩺 Status server starting", "address", "http://"+addr+"/health")
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

func (a *App) closeStatusServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Status server was not running.")
		return nil
	}

	if a.monitor != nil {
		a.monitor.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down status server...")
	err := a.httpServer.Shutdown(shutdownCtx)
	a.httpServer = nil
	a.statusAddr.Store("")
	if err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Status server shut down gracefully.")
	return nil
}
