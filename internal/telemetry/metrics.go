package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for the eval pipeline.
type Metrics struct {
	CompletionRequests *prometheus.CounterVec
	CompletionFailures *prometheus.CounterVec
	Fallbacks          *prometheus.CounterVec
	SimulatedCalls     *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
	EvalRunsTotal      prometheus.Counter
}

// NewMetrics registers the collectors once per process and returns them.
//
// Metrics:
//   - negotiation_eval_completion_requests_total{site}
//   - negotiation_eval_completion_failures_total{site}
//   - negotiation_eval_fallbacks_total{site}
//   - negotiation_eval_simulated_calls_total{persona,outcome}
//   - negotiation_eval_extractions_total{result}
//   - negotiation_eval_runs_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			CompletionRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "negotiation_eval_completion_requests_total",
					Help: "Completion requests issued, by call site",
				},
				[]string{"site"},
			),
			CompletionFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "negotiation_eval_completion_failures_total",
					Help: "Completion requests that failed or returned unusable output",
				},
				[]string{"site"},
			),
			Fallbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "negotiation_eval_fallbacks_total",
					Help: "Times a deterministic fallback replaced a completion result",
				},
				[]string{"site"},
			),
			SimulatedCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "negotiation_eval_simulated_calls_total",
					Help: "Synthetic calls completed, by persona and outcome",
				},
				[]string{"persona", "outcome"}, // outcome: quoted | unquoted
			),
			ExtractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "negotiation_eval_extractions_total",
					Help: "Persona extractions attempted, by result",
				},
				[]string{"result"}, // ok | skipped | failed
			),
			EvalRunsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "negotiation_eval_runs_total",
					Help: "Eval runs computed",
				},
			),
		}
	})
	return globalMetrics
}

// WriteTextfile dumps the default registry in text exposition format, for
// batch runs that exit before anything could scrape them.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
