// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/rtgraph/internal/ctxlog"
	"github.com/specialistvlad/rtgraph/internal/graph"
	"github.com/specialistvlad/rtgraph/internal/node"
	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/sem"
	"github.com/specialistvlad/rtgraph/internal/triggerqueue"
	"golang.org/x/sync/errgroup"
)

// generation pairs a finalized collection with the number it was installed
// under.
type generation struct {
	graph *graph.Collection
	id    uint64
}

// Scheduler executes the live graph once per RunCycle call.
type Scheduler struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics

	live        atomic.Pointer[generation]
	generations atomic.Uint64

	queue *triggerqueue.Queue[*node.Node]
	// queued counts nodes pushed but not yet taken for processing.
	queued         atomic.Int32
	terminalRefcnt atomic.Int32
	idleThreadCnt  atomic.Int32
	mainIdle       atomic.Bool

	start   *sem.Semaphore
	done    *sem.Semaphore
	trigger *sem.Semaphore

	// cycle and cycleGen are written by RunCycle before the start semaphore
	// is posted and only read by contexts working on that cycle.
	cycle    processing.Cycle
	cycleGen *generation

	lifecycle   sync.Mutex
	group       *errgroup.Group
	threadCount atomic.Int32
	running     atomic.Bool
	terminate   atomic.Bool
	inFlight    atomic.Bool
	graphBusy   atomic.Bool
	cycles      atomic.Uint64

	// threadInit runs on every context after it is bound to its OS thread.
	threadInit func(id int) error
}

// New creates a scheduler logging through the logger carried by ctx. Threads
// are not started until StartThreads.
func New(ctx context.Context, opts Options) *Scheduler {
	s := &Scheduler{
		opts:    opts,
		logger:  ctxlog.FromContext(ctx).With("component", "scheduler"),
		queue:   triggerqueue.New[*node.Node](64),
		start:   sem.New(0),
		done:    sem.New(0),
		trigger: sem.New(0),
	}
	s.metrics = newMetrics(opts.Registerer, s)
	return s
}

// Rechain installs c as the live graph. It fails with ErrCycleInFlight when
// a cycle is running.
func (s *Scheduler) Rechain(c *graph.Collection) error {
	if !c.Finalized() {
		return graph.ErrNotFinalized
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	if s.queued.Load() != 0 {
		return ErrCycleInFlight
	}

	s.queue.Reserve(c.Len())
	s.terminalRefcnt.Store(int32(len(c.TerminalNodes())))
	gen := &generation{graph: c, id: s.generations.Add(1)}
	s.live.Store(gen)
	s.metrics.rechains.Inc()

	s.logger.Debug("Graph rechained.",
		"generation", gen.id,
		"nodes", c.Len(),
		"trigger_nodes", len(c.TriggerNodes()),
		"terminal_nodes", len(c.TerminalNodes()),
		"max_route_latency", c.MaxRouteLatency(),
	)
	return nil
}

// Replace acquires the graph access flag, waits for the running cycle to
// finish and rechains c. It gives up with ErrGraphBusy when ctx expires.
func (s *Scheduler) Replace(ctx context.Context, c *graph.Collection) error {
	if err := s.LockGraph(ctx); err != nil {
		return err
	}
	defer s.UnlockGraph()

	for {
		err := s.Rechain(c)
		if !errors.Is(err, ErrCycleInFlight) {
			return err
		}
		select {
		case <-ctx.Done():
			return ErrGraphBusy
		case <-time.After(time.Millisecond):
		}
	}
}

// Graph returns the live collection, or nil before the first Rechain.
func (s *Scheduler) Graph() *graph.Collection {
	if gen := s.live.Load(); gen != nil {
		return gen.graph
	}
	return nil
}

// Generation returns the number of the live graph; 0 before any Rechain.
func (s *Scheduler) Generation() uint64 {
	if gen := s.live.Load(); gen != nil {
		return gen.id
	}
	return 0
}

// TryLockGraph acquires the graph access flag without blocking.
func (s *Scheduler) TryLockGraph() bool {
	return s.graphBusy.CompareAndSwap(false, true)
}

// LockGraph acquires the graph access flag, polling until ctx expires.
func (s *Scheduler) LockGraph(ctx context.Context) error {
	for !s.TryLockGraph() {
		select {
		case <-ctx.Done():
			return ErrGraphBusy
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// UnlockGraph releases the graph access flag.
func (s *Scheduler) UnlockGraph() {
	s.graphBusy.Store(false)
}

// RunCycle executes the live graph once and returns when every terminal node
// has been processed.
func (s *Scheduler) RunCycle(ctx context.Context, cycle processing.Cycle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.running.Load() {
		return ErrNotStarted
	}
	gen := s.live.Load()
	if gen == nil {
		return ErrNoGraph
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		if !s.running.Load() {
			return ErrNotStarted
		}
		return ErrCycleInFlight
	}
	defer s.inFlight.Store(false)
	if !s.running.Load() {
		return ErrNotStarted
	}

	began := time.Now()
	s.cycle = cycle
	s.cycleGen = gen

	specials := gen.graph.SpecialNodes()
	for _, n := range specials {
		n.Process(cycle)
		n.SetSkip(true)
	}

	if len(gen.graph.TerminalNodes()) > 0 {
		s.start.Post()
		s.done.Wait()
	}

	for _, n := range specials {
		n.SetSkip(false)
	}

	s.cycles.Add(1)
	s.metrics.cycles.Inc()
	s.metrics.cycleDuration.Observe(time.Since(began).Seconds())
	return nil
}

// push queues a ready node. Capacity is reserved for every node of the
// generation and a node is queued at most once per cycle.
func (s *Scheduler) push(n *node.Node) {
	s.queued.Add(1)
	for !s.queue.Push(n) {
		runtime.Gosched()
	}
}

// wake releases parked workers for the work still queued. The caller counts
// itself as one of the contexts that will take work.
func (s *Scheduler) wake() {
	idle := s.idleThreadCnt.Load()
	work := s.queued.Load()
	if n := min(idle+1, work) - 1; n > 0 {
		s.trigger.PostN(int(n))
	}
}

// process runs n and triggers its downstream nodes.
func (s *Scheduler) process(n *node.Node) {
	if !n.Skipped() {
		n.Process(s.cycle)
	}
	for _, d := range n.Downstream() {
		if d.Trigger() {
			s.push(d)
		}
	}
	if n.IsTerminal() && s.terminalRefcnt.Add(-1) == 0 {
		s.done.Post()
	}
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Running     bool   `json:"running"`
	Threads     int    `json:"threads"`
	IdleThreads int    `json:"idle_threads"`
	Generation  uint64 `json:"generation"`
	Nodes       int    `json:"nodes"`
	Cycles      uint64 `json:"cycles"`
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Running:     s.running.Load(),
		Threads:     int(s.threadCount.Load()),
		IdleThreads: int(s.idleThreadCnt.Load()),
		Generation:  s.Generation(),
		Cycles:      s.cycles.Load(),
	}
	if g := s.Graph(); g != nil {
		st.Nodes = g.Len()
	}
	return st
}
