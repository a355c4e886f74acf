// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of orchestrator runs",
		},
		[]string{"outcome"},
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pipeline_run_duration_seconds",
			Help: "Duration of a full orchestrator run in seconds",
		},
	)

	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Total mail transport send attempts",
		},
		[]string{"result"},
	)

	GeneratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_requests_total",
			Help: "Total content generator requests",
		},
		[]string{"result"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_classifications_total",
			Help: "Total recruiter response classifications",
		},
		[]string{"response_type"},
	)

	QuotaSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_skipped_jobs_total",
			Help: "Jobs left in draft because the daily quota was exhausted",
		},
	)
)
