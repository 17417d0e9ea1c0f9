// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	callbacks  prometheus.Counter
	skipped    prometheus.Counter
	xruns      prometheus.Counter
	load       prometheus.Gauge
	processing prometheus.Histogram
	// segments is indexed by SegmentKind so the callback never looks up labels.
	segments [numSegmentKinds]prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	m := &metrics{
		callbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtgraph",
			Subsystem: "engine",
			Name:      "callbacks_total",
			Help:      "Audio callbacks that reached the graph.",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtgraph",
			Subsystem: "engine",
			Name:      "skipped_callbacks_total",
			Help:      "Audio callbacks skipped because the graph was busy or missing.",
		}),
		xruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtgraph",
			Subsystem: "engine",
			Name:      "xruns_total",
			Help:      "Callbacks that took longer than the block period.",
		}),
		load: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtgraph",
			Subsystem: "engine",
			Name:      "dsp_load_ratio",
			Help:      "Processing time of the last callback relative to the block period.",
		}),
		processing: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rtgraph",
			Subsystem: "engine",
			Name:      "callback_duration_seconds",
			Help:      "Wall-clock processing time of a callback.",
			Buckets:   prometheus.ExponentialBuckets(25e-6, 2, 12),
		}),
	}
	segments := f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rtgraph",
		Subsystem: "engine",
		Name:      "segments_total",
		Help:      "Sub-cycles run, by the reason of their boundary.",
	}, []string{"kind"})
	for k := SegmentKind(0); k < numSegmentKinds; k++ {
		m.segments[k] = segments.WithLabelValues(k.String())
	}
	return m
}
