// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/specialistvlad/rtgraph/internal/sem"
	"golang.org/x/sync/errgroup"
)

// StartThreads starts the worker contexts and the main context and blocks
// until all of them are parked. On failure every context already started is
// torn down before the error is returned.
func (s *Scheduler) StartThreads(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running.Load() {
		return errors.New("scheduler threads already started")
	}

	n, err := ThreadCount(s.opts.Threads, os.LookupEnv, runtime.NumCPU())
	if err != nil {
		return err
	}

	s.terminate.Store(false)
	s.inFlight.Store(false)
	s.idleThreadCnt.Store(0)
	s.mainIdle.Store(false)
	s.queued.Store(0)
	s.start, s.done, s.trigger = sem.New(0), sem.New(0), sem.New(0)
	s.threadCount.Store(int32(n))

	g := new(errgroup.Group)
	s.group = g
	ready := make(chan error, n+1)

	s.logger.Debug("Starting DSP threads.", "workers", n, "realtime", s.opts.RealTime.Enabled)
	for id := 0; id <= n; id++ {
		isMain := id == n
		g.Go(func() error {
			return s.threadMain(id, isMain, ready)
		})
	}

	var startErr error
	for i := 0; i <= n; i++ {
		if err := <-ready; err != nil && startErr == nil {
			startErr = err
		}
	}
	if startErr != nil {
		s.logger.Error("DSP thread startup failed, tearing down.", "error", startErr)
		s.shutdown(s.opts.joinTimeout())
		return startErr
	}

	for s.idleThreadCnt.Load() != int32(n) || !s.mainIdle.Load() {
		select {
		case <-ctx.Done():
			s.shutdown(s.opts.joinTimeout())
			return fmt.Errorf("waiting for DSP threads to park: %w", ctx.Err())
		case <-time.After(100 * time.Microsecond):
		}
	}

	s.running.Store(true)
	s.logger.Info("⚙️ DSP threads started.", "workers", n)
	return nil
}

// threadMain is the body of every execution context.
func (s *Scheduler) threadMain(id int, isMain bool, ready chan<- error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := s.initThread(id); err != nil {
		startErr := &StartupError{Context: id, Err: err}
		ready <- startErr
		return startErr
	}
	ready <- nil

	logger := s.logger.With("context", id)
	if isMain {
		logger.Debug("Main context running.")
		s.mainLoop()
	} else {
		logger.Debug("Worker context running.")
		s.workerLoop()
	}
	logger.Debug("Context exited.")
	return nil
}

func (s *Scheduler) initThread(id int) error {
	if s.threadInit != nil {
		if err := s.threadInit(id); err != nil {
			return err
		}
	}
	if !s.opts.RealTime.Enabled {
		return nil
	}
	return setRealtime(s.opts.RealTime, s.opts.BlockPeriod())
}

// mainLoop seeds every cycle and then helps draining the queue.
func (s *Scheduler) mainLoop() {
	for {
		s.mainIdle.Store(true)
		s.start.Wait()
		s.mainIdle.Store(false)
		if s.terminate.Load() {
			return
		}

		g := s.cycleGen.graph
		s.terminalRefcnt.Store(int32(len(g.TerminalNodes())))
		for _, n := range g.TriggerNodes() {
			s.push(n)
		}

		for {
			n, ok := s.queue.Pop()
			if !ok {
				break
			}
			s.wake()
			s.queued.Add(-1)
			s.process(n)
		}
	}
}

// workerLoop processes queued nodes and parks while the queue is empty. It
// only exits once the queue is drained, so a cycle in flight always completes.
func (s *Scheduler) workerLoop() {
	for {
		n, ok := s.queue.Pop()
		for !ok {
			if s.terminate.Load() {
				return
			}
			s.idleThreadCnt.Add(1)
			s.trigger.Wait()
			s.idleThreadCnt.Add(-1)
			n, ok = s.queue.Pop()
		}
		s.wake()
		s.queued.Add(-1)
		s.process(n)
	}
}

// TerminateThreads stops all contexts. A cycle in flight is allowed to finish
// first. It is a no-op when the threads are not running.
func (s *Scheduler) TerminateThreads(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.Swap(false) {
		return nil
	}

	timeout := s.opts.joinTimeout()
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// Holding inFlight keeps new cycles and rechains out until restart.
	stuck := false
	for !s.inFlight.CompareAndSwap(false, true) {
		if time.Now().After(deadline) {
			s.logger.Warn("Cycle still in flight at shutdown.", "timeout", timeout)
			stuck = true
			break
		}
		time.Sleep(time.Millisecond)
	}

	want := s.threadCount.Load()
	for !stuck && (s.idleThreadCnt.Load() != want || !s.mainIdle.Load()) && time.Now().Before(deadline) {
		time.Sleep(100 * time.Microsecond)
	}
	if idle := s.idleThreadCnt.Load(); idle != want {
		s.logger.Warn("Idle thread count mismatch at shutdown.", "expected", want, "found", idle)
	}

	err := s.shutdown(time.Until(deadline))
	if stuck {
		s.done.Post()
	}
	if err != nil {
		return err
	}
	s.logger.Info("⚙️ DSP threads stopped.")
	return nil
}

// shutdown flags exit, wakes every context and joins them.
func (s *Scheduler) shutdown(timeout time.Duration) error {
	s.terminate.Store(true)
	s.trigger.PostN(int(s.threadCount.Load()))
	s.start.Post()

	joined := make(chan error, 1)
	go func() { joined <- s.group.Wait() }()

	select {
	case err := <-joined:
		s.threadCount.Store(0)
		s.idleThreadCnt.Store(0)
		var startErr *StartupError
		if err != nil && !errors.As(err, &startErr) {
			return fmt.Errorf("joining DSP threads: %w", err)
		}
		return nil
	case <-time.After(max(timeout, 10*time.Millisecond)):
		return fmt.Errorf("timed out after %s waiting for DSP threads to exit", timeout)
	}
}
