// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package scheduler

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// EnvThreads overrides the number of worker threads.
	EnvThreads = "RTGRAPH_DSP_THREADS"
	// MaxThreads is the upper bound on worker threads.
	MaxThreads = 128
	// DefaultJoinTimeout bounds how long TerminateThreads waits for threads.
	DefaultJoinTimeout = 5 * time.Second
	// DefaultBudgetPercent is the share of the block period granted as
	// runtime under deadline scheduling.
	DefaultBudgetPercent = 75
)

// Options configures a Scheduler.
type Options struct {
	// Threads is the requested number of worker threads. Nil selects the
	// default of the core count minus two.
	Threads *int

	SampleRate  uint32
	BlockLength uint32

	RealTime RealTime

	// JoinTimeout bounds TerminateThreads. Zero means DefaultJoinTimeout.
	JoinTimeout time.Duration

	// Registerer receives the scheduler's metrics when set.
	Registerer prometheus.Registerer
}

// RealTime configures OS-level scheduling of the DSP threads.
type RealTime struct {
	Enabled bool
	// Priority is the SCHED_FIFO priority, clamped to what the process may use.
	Priority int
	// Deadline selects SCHED_DEADLINE instead of SCHED_FIFO.
	Deadline bool
	// BudgetPercent is the runtime share of the period under SCHED_DEADLINE.
	BudgetPercent int
}

// BlockPeriod is the wall-clock duration of one block.
func (o Options) BlockPeriod() time.Duration {
	if o.SampleRate == 0 {
		return 0
	}
	return time.Duration(o.BlockLength) * time.Second / time.Duration(o.SampleRate)
}

func (o Options) joinTimeout() time.Duration {
	if o.JoinTimeout <= 0 {
		return DefaultJoinTimeout
	}
	return o.JoinTimeout
}

// ThreadCount resolves the number of worker threads. The environment
// override wins over the requested value, which wins over numCPU-2. The
// result is clamped to [1, MaxThreads]; negative or unparsable values are
// configuration errors.
func ThreadCount(requested *int, lookupEnv func(string) (string, bool), numCPU int) (int, error) {
	n := numCPU - 2
	if requested != nil {
		if *requested < 0 {
			return 0, &ConfigurationError{Field: "thread count", Value: strconv.Itoa(*requested), Reason: "must not be negative"}
		}
		n = *requested
	}
	if lookupEnv != nil {
		if raw, ok := lookupEnv(EnvThreads); ok && raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return 0, &ConfigurationError{Field: EnvThreads, Value: raw, Reason: "not an integer"}
			}
			if v < 0 {
				return 0, &ConfigurationError{Field: EnvThreads, Value: raw, Reason: "must not be negative"}
			}
			n = v
		}
	}
	return min(max(n, 1), MaxThreads), nil
}
