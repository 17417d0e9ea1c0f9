// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package processing defines the values exchanged between the scheduler and
// the units of work it runs: the per-cycle timing record, the transport
// snapshot, and the Processable contract every node payload implements.
package processing
