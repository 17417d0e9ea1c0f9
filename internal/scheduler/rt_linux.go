// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

//go:build linux

package scheduler

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	minRTPriority = 1
	maxRTPriority = 99
)

// setRealtime switches the calling OS thread to a real-time policy. The
// caller must have locked its goroutine to the thread.
func setRealtime(rt RealTime, period time.Duration) error {
	if rt.Deadline {
		if period <= 0 {
			return errors.New("deadline scheduling requires a sample rate and block length")
		}
		budget := rt.BudgetPercent
		if budget <= 0 || budget > 100 {
			budget = DefaultBudgetPercent
		}
		attr := unix.SchedAttr{
			Size:     unix.SizeofSchedAttr,
			Policy:   unix.SCHED_DEADLINE,
			Runtime:  uint64(period * time.Duration(budget) / 100),
			Deadline: uint64(period),
			Period:   uint64(period),
		}
		if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
			return fmt.Errorf("setting SCHED_DEADLINE: %w", err)
		}
		return nil
	}

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(clampPriority(rt.Priority, rtPriorityLimit())),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("setting SCHED_FIFO priority %d: %w", attr.Priority, err)
	}
	return nil
}

// rtPriorityLimit is the highest priority RLIMIT_RTPRIO allows.
func rtPriorityLimit() int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_RTPRIO, &rl); err != nil {
		return maxRTPriority
	}
	if rl.Max < maxRTPriority {
		return int(rl.Max)
	}
	return maxRTPriority
}

func clampPriority(p, limit int) int {
	return max(minRTPriority, min(p, limit, maxRTPriority))
}
