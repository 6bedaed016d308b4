package compiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// unitsCompiled counts compilations by result
	unitsCompiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contractweave_units_compiled_total",
		Help: "Guard unit compilations by result",
	}, []string{"result"})

	// compileDuration tracks parse-to-load latency
	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contractweave_unit_compile_duration_seconds",
		Help:    "Guard unit compilation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})
)
