// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by RunCycle before StartThreads or after
	// TerminateThreads.
	ErrNotStarted = errors.New("scheduler threads are not running")
	// ErrCycleInFlight is returned when an operation needs the scheduler to
	// be between cycles.
	ErrCycleInFlight = errors.New("a cycle is in flight")
	// ErrNoGraph is returned by RunCycle before the first Rechain.
	ErrNoGraph = errors.New("no graph has been rechained")
	// ErrGraphBusy is returned when the graph access flag cannot be acquired.
	ErrGraphBusy = errors.New("graph access is held elsewhere")
)

// ConfigurationError reports an invalid scheduler setting.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// StartupError reports that an execution context could not be started. All
// contexts started before the failure have been torn down.
type StartupError struct {
	Context int
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to start DSP context %d: %v", e.Context, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
