package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// planningErrors counts violations by aspect and phase
var planningErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "contractweave_planning_errors_total",
	Help: "Contract violations detected by guard hooks",
}, []string{"aspect", "phase"})
