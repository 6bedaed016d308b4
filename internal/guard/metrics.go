package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// hookCalls counts guard hook invocations by unit and hook
var hookCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "contractweave_guard_hook_calls_total",
	Help: "Guard hook invocations by unit and hook",
}, []string{"unit", "hook"})
