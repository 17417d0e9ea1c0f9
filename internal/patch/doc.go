// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package patch builds processing graphs from HCL patch files.
//
// A patch declares nodes by processor kind and name:
//
//	node "sine" "osc" {
//	  frequency = 440
//	}
//
//	node "delay" "comp" {
//	  inputs = [node.osc]
//	  frames = ms(5)
//	}
//
//	node "output" "main" {
//	  inputs = [node.comp]
//	}
//
// inputs lists upstream nodes and becomes the graph's edges. latency adds
// declared playback latency to the node. Every other attribute is evaluated
// with sample_rate, block_length, bpm and beats_per_bar in scope and bound to
// the processor's parameters by the registry.
package patch
