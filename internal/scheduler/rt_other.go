// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

//go:build !linux

package scheduler

import (
	"fmt"
	"runtime"
	"time"
)

func setRealtime(RealTime, time.Duration) error {
	return fmt.Errorf("real-time scheduling is not supported on %s", runtime.GOOS)
}
