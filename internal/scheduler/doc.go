// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package scheduler runs one generation of the processing graph once per
// audio callback across a fixed pool of OS-thread-bound goroutines.
//
// # How It Works
//
// The scheduler owns N worker contexts plus one extra "main" context. Each
// cycle follows the same pattern:
//  1. RunCycle processes every special node inline on the caller and marks
//     it as skipped, then releases the start semaphore.
//  2. The main context resets the terminal counter, pushes every trigger node
//     onto the trigger queue and starts draining it like any worker.
//  3. A context that pops a node wakes at most as many parked workers as
//     there is queued work, processes the node and triggers its downstream
//     nodes. A downstream node whose last producer just finished is pushed.
//  4. Finishing a terminal node decrements the terminal counter. The context
//     that brings it to zero posts the done semaphore, which releases the
//     RunCycle caller.
//
// Workers that find the queue empty park on the trigger semaphore. Nothing
// spins.
//
// # Rechaining
//
// The live collection is swapped atomically by Rechain between cycles. A
// rechain caller that may race with the audio callback holds the graph
// access flag (LockGraph/UnlockGraph) for the duration; the engine skips a
// callback while the flag is held.
//
// # Thread-Safety
//
// RunCycle must be called from a single goroutine at a time (the audio
// callback). Rechain, StartThreads and TerminateThreads may be called from
// any goroutine; they never run concurrently with a cycle.
package scheduler
