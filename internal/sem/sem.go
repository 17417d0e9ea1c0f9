// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package sem provides a counting semaphore with post/wait semantics.
package sem

import "sync"

// Semaphore is a counting semaphore. Post never blocks; Wait blocks while the
// count is zero. Unlike a weighted semaphore there is no upper bound, so a
// Post may happen before the matching Wait.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// New creates a semaphore with the given initial count.
func New(initial int) *Semaphore {
	s := &Semaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Post increments the count and wakes one waiter.
func (s *Semaphore) Post() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// PostN increments the count by n and wakes up to n waiters.
func (s *Semaphore) PostN(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.cond.Signal()
	}
}

// Wait blocks until the count is positive and decrements it.
func (s *Semaphore) Wait() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}
