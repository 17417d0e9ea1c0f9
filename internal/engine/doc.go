// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package engine drives the scheduler from the audio callback.
//
// Every callback is split into sub-cycles so that latency preroll, count-in
// and recording preroll boundaries fall exactly between two graph runs:
//
//	callback: |--- preroll ---|-- preroll --|--- count-in ---|--- normal ---|
//	            route A silent  route A live   transport idle   rolling
//
// The splitting itself is the pure function Split; Engine wires it to the
// transport, the scheduler and the bookkeeping exposed to the monitor.
package engine
