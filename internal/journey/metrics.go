package journey

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	journeysCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journey_created_total",
			Help: "Total number of journeys created",
		},
	)

	stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journey_stage_transitions_total",
			Help: "Stage transitions by target stage",
		},
		[]string{"stage"},
	)

	sweepExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journey_sweep_expirations_total",
			Help: "Entities expired by the deadline sweep",
		},
		[]string{"kind"},
	)

	feedbackSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journey_feedback_submitted_total",
			Help: "Total number of meeting feedback submissions",
		},
	)
)

func RecordJourneyCreated() {
	journeysCreated.Inc()
}

func RecordTransition(stage Stage) {
	stageTransitions.WithLabelValues(string(stage)).Inc()
}

func RecordSweepExpiration(kind string) {
	sweepExpirations.WithLabelValues(kind).Inc()
}

func RecordFeedback() {
	feedbackSubmitted.Inc()
}
