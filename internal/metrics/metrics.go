package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the quiz service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsCreated           prometheus.Counter
	SessionsExpired           prometheus.Counter
	Submissions               *prometheus.CounterVec
	SubmissionScores          prometheus.Histogram
	ImprovementPlansRequested prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seio",
			Subsystem: "quiz",
			Name:      "sessions_created_total",
			Help:      "Quiz sessions created for students.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seio",
			Subsystem: "quiz",
			Name:      "sessions_expired_total",
			Help:      "Quiz sessions transitioned to expired.",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seio",
			Subsystem: "quiz",
			Name:      "submissions_total",
			Help:      "Quiz submissions by outcome code.",
		}, []string{"outcome"}),
		SubmissionScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seio",
			Subsystem: "quiz",
			Name:      "submission_score",
			Help:      "Scores (0-5) of accepted submissions.",
			Buckets:   []float64{1, 2, 3, 3.5, 4, 4.5, 5},
		}),
		ImprovementPlansRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seio",
			Subsystem: "quiz",
			Name:      "improvement_plans_requested_total",
			Help:      "Improvement plan requests published.",
		}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.SessionsExpired,
		m.Submissions,
		m.SubmissionScores,
		m.ImprovementPlansRequested,
	)
	return m
}

func (m *Metrics) SessionCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) SessionExpired() {
	if m != nil {
		m.SessionsExpired.Inc()
	}
}

// SubmissionAccepted records an accepted submission and its score.
func (m *Metrics) SubmissionAccepted(score float64) {
	if m != nil {
		m.Submissions.WithLabelValues("accepted").Inc()
		m.SubmissionScores.Observe(score)
	}
}

// SubmissionRejected records a rejected submission by error code.
func (m *Metrics) SubmissionRejected(code string) {
	if m != nil {
		m.Submissions.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ImprovementPlanRequested() {
	if m != nil {
		m.ImprovementPlansRequested.Inc()
	}
}
