package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests counts WordPress calls by endpoint and outcome (status code or "network").
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessment",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "WordPress REST calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// BackendLatency observes WordPress call latency by endpoint.
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assessment",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "WordPress REST call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// SessionTransitions counts quiz session status changes.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessment",
		Subsystem: "quiz",
		Name:      "session_transitions_total",
		Help:      "Quiz session status transitions by test and target status.",
	}, []string{"test", "status"})

	// DroppedAnswers counts answers left out of partitioned submissions.
	DroppedAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessment",
		Subsystem: "quiz",
		Name:      "dropped_answers_total",
		Help:      "Answers whose group matched no submission partition.",
	}, []string{"test"})

	// SkippedQuestions counts raw question items left out during normalization.
	SkippedQuestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assessment",
		Subsystem: "quiz",
		Name:      "skipped_questions_total",
		Help:      "Raw question items skipped during normalization by reason.",
	}, []string{"test", "reason"})
)
