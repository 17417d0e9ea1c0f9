// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package node defines a single vertex of the processing graph.
//
// A Node wraps a processing.Processable together with the scheduling state the
// scheduler needs: its downstream edges, the number of producers it waits for
// each cycle, and the latencies used for preroll and compensation.
//
// # Triggering
//
// Every node carries an atomic refcount that starts each cycle at the number
// of upstream producers. A finished producer calls Trigger on each of its
// downstream nodes; the call that takes the counter from one to zero restores
// it to its initial value and reports the node as ready. Exactly one producer
// observes readiness per cycle, so a node is queued exactly once.
package node
