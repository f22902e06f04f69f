package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "run",
		Name:      "transitions_total",
		Help:      "Count of run status transition attempts by event and result",
	}, []string{"event", "result"})

	TransitionConflictsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "run",
		Name:      "transition_conflicts_total",
		Help:      "Count of optimistic version conflicts hit while writing a transition",
	}, []string{"event"})
)
