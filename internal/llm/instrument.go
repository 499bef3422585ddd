package llm

import (
	"context"

	"negotiation-eval-go/internal/telemetry"
)

type instrumented struct {
	next    Completer
	metrics *telemetry.Metrics
}

// Instrument counts requests and failures per site around next.
func Instrument(next Completer, m *telemetry.Metrics) Completer {
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	site := string(req.Site)
	i.metrics.CompletionRequests.WithLabelValues(site).Inc()
	out, err := i.next.Complete(ctx, req)
	if err != nil {
		i.metrics.CompletionFailures.WithLabelValues(site).Inc()
	}
	return out, err
}
