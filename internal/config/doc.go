// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package config loads the HCL engine file.
//
//	engine {
//	  sample_rate  = 48000
//	  block_length = 256
//	  threads      = 4
//	  join_timeout = "5s"
//	  realtime {
//	    priority = 70
//	  }
//	}
//
//	transport {
//	  bpm          = 120
//	  countin_bars = 1
//	  loop {
//	    start = 0
//	    end   = 192000
//	  }
//	}
//
//	monitor {
//	  address  = ":8090"
//	  interval = "250ms"
//	}
//
//	patch {
//	  paths = ["patches"]
//	  watch = true
//	}
//
// Every block and attribute is optional; Default holds the values used for
// anything left out.
package config
