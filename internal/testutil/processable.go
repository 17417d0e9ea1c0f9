// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package testutil

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/rtgraph/internal/processing"
)

// Recorder is a processable that counts its invocations and keeps every
// request it received. It can optionally sleep to widen race windows.
type Recorder struct {
	name    string
	latency uint32
	sleep   time.Duration

	calls atomic.Int64
	// running detects overlapping Process calls on the same value.
	running    atomic.Int32
	overlapped atomic.Bool

	mu       sync.Mutex
	requests []processing.Request
	// OnProcess, when set, is called with every request before it is stored.
	OnProcess func(processing.Request)
}

// NewRecorder creates a Recorder with the given name and own latency.
func NewRecorder(name string, latency uint32) *Recorder {
	return &Recorder{name: name, latency: latency}
}

// WithSleep makes every Process call sleep for d.
func (r *Recorder) WithSleep(d time.Duration) *Recorder {
	r.sleep = d
	return r
}

func (r *Recorder) Name() string { return r.name }
func (r *Recorder) Latency() uint32 { return r.latency }

// Process implements processing.Processable.
func (r *Recorder) Process(req processing.Request) {
	if r.running.Add(1) > 1 {
		r.overlapped.Store(true)
	}
	defer r.running.Add(-1)

	if r.OnProcess != nil {
		r.OnProcess(req)
	}
	if r.sleep > 0 {
		time.Sleep(r.sleep)
	}
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	r.calls.Add(1)
}

// Calls returns the number of completed Process calls.
func (r *Recorder) Calls() int64 {
	return r.calls.Load()
}

// Overlapped reports whether two Process calls ever ran at the same time.
func (r *Recorder) Overlapped() bool {
	return r.overlapped.Load()
}

// Requests returns a copy of every request received so far.
func (r *Recorder) Requests() []processing.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]processing.Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.requests = nil
	r.mu.Unlock()
	r.calls.Store(0)
}
