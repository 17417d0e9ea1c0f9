// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	rechains      prometheus.Counter
}

// newMetrics registers the scheduler collectors on reg. A nil reg yields
// working but unregistered collectors.
func newMetrics(reg prometheus.Registerer, s *Scheduler) *metrics {
	f := promauto.With(reg)
	m := &metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtgraph",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Number of completed graph cycles.",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rtgraph",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of a graph cycle.",
			Buckets:   prometheus.ExponentialBuckets(25e-6, 2, 12),
		}),
		rechains: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtgraph",
			Subsystem: "scheduler",
			Name:      "rechains_total",
			Help:      "Number of graph generations installed.",
		}),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rtgraph",
		Subsystem: "scheduler",
		Name:      "idle_threads",
		Help:      "Worker threads currently parked.",
	}, func() float64 { return float64(s.idleThreadCnt.Load()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rtgraph",
		Subsystem: "scheduler",
		Name:      "threads",
		Help:      "Worker threads started.",
	}, func() float64 { return float64(s.threadCount.Load()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rtgraph",
		Subsystem: "scheduler",
		Name:      "generation",
		Help:      "Generation number of the live graph.",
	}, func() float64 { return float64(s.Generation()) })
	return m
}
