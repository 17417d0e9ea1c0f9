// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package graph

import "errors"

var (
	// ErrCycle is returned by Validate and Finalize when the edges form a cycle.
	ErrCycle = errors.New("graph contains a cycle")
	// ErrFinalized is returned when a finalized collection is modified.
	ErrFinalized = errors.New("collection is finalized")
	// ErrNotFinalized is returned when a collection is used before Finalize.
	ErrNotFinalized = errors.New("collection is not finalized")
)
