package metrics

import (
	"net/http"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports session lifecycle counters. It implements app.Observer.
type Recorder struct {
	registry         *prometheus.Registry
	sessionsStarted  *prometheus.CounterVec
	permissionDenied *prometheus.CounterVec
	answers          *prometheus.CounterVec
	timersDiscarded  *prometheus.CounterVec
	completed        *prometheus.CounterVec
	scorePercentage  *prometheus.HistogramVec
}

var _ app.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuequiz_sessions_started_total",
			Help: "Quiz attempts that entered playback.",
		}, []string{"catalog"}),
		permissionDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuequiz_permission_denied_total",
			Help: "Attempts blocked by a refused video capability check.",
		}, []string{"catalog"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuequiz_answers_submitted_total",
			Help: "Submitted answers by correctness.",
		}, []string{"catalog", "correct"}),
		timersDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuequiz_timers_discarded_total",
			Help: "Delayed transitions dropped because the session moved on.",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuequiz_sessions_completed_total",
			Help: "Quiz attempts that reached the results screen.",
		}, []string{"catalog"}),
		scorePercentage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cuequiz_score_percentage",
			Help:    "Final score percentage of completed attempts.",
			Buckets: prometheus.LinearBuckets(0, 20, 6),
		}, []string{"catalog"}),
	}
	r.registry.MustRegister(
		r.sessionsStarted,
		r.permissionDenied,
		r.answers,
		r.timersDiscarded,
		r.completed,
		r.scorePercentage,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SessionStarted(catalogID string) {
	r.sessionsStarted.WithLabelValues(catalogID).Inc()
}

func (r *Recorder) PermissionDenied(catalogID string) {
	r.permissionDenied.WithLabelValues(catalogID).Inc()
}

func (r *Recorder) AnswerSubmitted(catalogID string, correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	r.answers.WithLabelValues(catalogID, label).Inc()
}

func (r *Recorder) TimerDiscarded(kind app.TimerKind) {
	r.timersDiscarded.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) SessionCompleted(catalogID string, summary domain.Summary) {
	r.completed.WithLabelValues(catalogID).Inc()
	r.scorePercentage.WithLabelValues(catalogID).Observe(float64(summary.Percentage))
}
