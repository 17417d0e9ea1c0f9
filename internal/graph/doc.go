// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package graph owns the set of nodes the scheduler runs during one
// generation of the processing graph.
//
// # Lifecycle
//
//  1. **Build:** a builder adds processables with Add/AddSpecial and wires
//     them with Connect.
//  2. **Finalize:** Finalize validates acyclicity, resets per-cycle counters
//     and derives the trigger, terminal and special subsets together with the
//     route and tail latencies of every node.
//  3. **Run:** the scheduler adopts the collection through Rechain. From then
//     on only per-cycle node state (refcounts, skip flags) changes.
//  4. **Retire:** the next Rechain replaces it. A retired collection is never
//     touched by the scheduler again.
//
// # Thread-Safety
//
// Building is single-goroutine. After Finalize the structural accessors are
// read-only and safe for concurrent use.
package graph
