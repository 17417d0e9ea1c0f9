// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package triggerqueue provides the bounded multi-producer multi-consumer
// queue through which ready nodes are handed to worker goroutines.
//
// Push and Pop never block and never allocate. The implementation is the
// classic sequence-numbered ring: each slot carries a sequence counter that
// tells producers and consumers whose turn it is, so a value written by Push
// happens-before the Pop that returns it.
package triggerqueue

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type cell[T any] struct {
	seq atomic.Uint64
	val T
}

type ring[T any] struct {
	cells []cell[T]
	mask  uint64

	_   cpu.CacheLinePad
	enq atomic.Uint64
	_   cpu.CacheLinePad
	deq atomic.Uint64
	_   cpu.CacheLinePad
}

func newRing[T any](capacity int) *ring[T] {
	size := uint64(2)
	for size < uint64(capacity) {
		size <<= 1
	}
	r := &ring[T]{cells: make([]cell[T], size), mask: size - 1}
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
	return r
}

// Queue is a bounded lock-free FIFO.
type Queue[T any] struct {
	r atomic.Pointer[ring[T]]
}

// New creates a queue holding at least capacity values.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{}
	q.r.Store(newRing[T](capacity))
	return q
}

// Cap returns the number of values the queue can hold.
func (q *Queue[T]) Cap() int {
	return len(q.r.Load().cells)
}

// Len returns an approximation of the number of queued values.
func (q *Queue[T]) Len() int {
	r := q.r.Load()
	n := int64(r.enq.Load()) - int64(r.deq.Load())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Reserve makes room for at least n values. Growing replaces the storage, so
// it must only be called while no goroutine is pushing and the queue is
// empty. A concurrent Pop on the replaced storage simply finds it empty.
func (q *Queue[T]) Reserve(n int) {
	if n <= q.Cap() {
		return
	}
	q.r.Store(newRing[T](n))
}

// Push appends v. It returns false when the queue is full.
func (q *Queue[T]) Push(v T) bool {
	r := q.r.Load()
	pos := r.enq.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if r.enq.CompareAndSwap(pos, pos+1) {
				c.val = v
				c.seq.Store(pos + 1)
				return true
			}
			pos = r.enq.Load()
		case dif < 0:
			return false
		default:
			pos = r.enq.Load()
		}
	}
}

// Pop removes the oldest value. The boolean is false when the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	r := q.r.Load()
	pos := r.deq.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		switch dif := int64(seq) - int64(pos+1); {
		case dif == 0:
			if r.deq.CompareAndSwap(pos, pos+1) {
				v := c.val
				c.val = zero
				c.seq.Store(pos + r.mask + 1)
				return v, true
			}
			pos = r.deq.Load()
		case dif < 0:
			return zero, false
		default:
			pos = r.deq.Load()
		}
	}
}
