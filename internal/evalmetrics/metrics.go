// Package evalmetrics computes the headline evaluation metrics for a set of
// vendor calls: quote-obtained, negotiation-attempt, negotiation-success
// and safety rates, plus the price and outcome statistics behind them.
package evalmetrics

import (
	"math"

	"negotiation-eval-go/internal/types"
)

// DefaultSafetyRate is reported when no completed call was analysed.
const DefaultSafetyRate = 100

type OutcomeBreakdown struct {
	Completed int `json:"completed"`
	NoAnswer  int `json:"no_answer"`
	Busy      int `json:"busy"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

// Count returns the number of calls with status s.
func (o OutcomeBreakdown) Count(s types.CallStatus) int {
	switch s {
	case types.StatusCompleted:
		return o.Completed
	case types.StatusNoAnswer:
		return o.NoAnswer
	case types.StatusBusy:
		return o.Busy
	case types.StatusRejected:
		return o.Rejected
	case types.StatusFailed:
		return o.Failed
	}
	return 0
}

func (o *OutcomeBreakdown) add(s types.CallStatus) {
	switch s {
	case types.StatusCompleted:
		o.Completed++
	case types.StatusNoAnswer:
		o.NoAnswer++
	case types.StatusBusy:
		o.Busy++
	case types.StatusRejected:
		o.Rejected++
	case types.StatusFailed:
		o.Failed++
	}
}

type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// EvalMetrics is a computed snapshot; nothing mutates it after return.
type EvalMetrics struct {
	TotalCalls      int `json:"total_calls"`
	CallsWithQuote  int `json:"calls_with_quote"`
	CallsNegotiated int `json:"calls_negotiated"`
	CallsAnalyzed   int `json:"calls_analyzed"`

	QuoteObtainedRate      int `json:"quote_obtained_rate"`
	NegotiationAttemptRate int `json:"negotiation_attempt_rate"`
	NegotiationSuccessRate int `json:"negotiation_success_rate"`
	SafetyRate             int `json:"safety_rate"`

	AvgPriceReductionPercent float64 `json:"avg_price_reduction_percent"`
	TotalSavings             float64 `json:"total_savings"`
	AvgQuotedPrice           float64 `json:"avg_quoted_price"`
	AvgFinalPrice            float64 `json:"avg_final_price"`
	AvgDurationSec           float64 `json:"avg_duration_sec"`

	Outcomes     OutcomeBreakdown `json:"outcome_breakdown"`
	SafetyIssues []IssueCount     `json:"safety_issues"`

	// TranscriptsAnalyzed is false when attempt and safety rates are the
	// documented defaults rather than measurements.
	TranscriptsAnalyzed bool `json:"transcripts_analyzed"`
}

// CalculateBasic computes every metric that needs no transcript analysis.
// Attempt rate is 0 and safety rate 100 in the result.
func CalculateBasic(calls []types.CallRecord) EvalMetrics {
	m := EvalMetrics{
		TotalCalls:   len(calls),
		SafetyRate:   DefaultSafetyRate,
		SafetyIssues: []IssueCount{},
	}

	var (
		quotedSum, finalSum float64
		reductionSum        float64
		durationSum         int
	)
	for _, c := range calls {
		m.Outcomes.add(c.Status)
		durationSum += c.DurationSec
		if !c.HasQuote() {
			continue
		}
		m.CallsWithQuote++
		quoted := *c.QuotedPrice
		final := c.FinalPrice()
		quotedSum += quoted
		finalSum += final
		if c.Negotiated() {
			m.CallsNegotiated++
			reductionSum += (quoted - final) / quoted * 100
			m.TotalSavings += quoted - final
		}
	}

	m.QuoteObtainedRate = Percent(m.CallsWithQuote, m.TotalCalls)
	m.NegotiationSuccessRate = Percent(m.CallsNegotiated, m.CallsWithQuote)
	if m.CallsNegotiated > 0 {
		m.AvgPriceReductionPercent = round1(reductionSum / float64(m.CallsNegotiated))
	}
	if m.CallsWithQuote > 0 {
		m.AvgQuotedPrice = round1(quotedSum / float64(m.CallsWithQuote))
		m.AvgFinalPrice = round1(finalSum / float64(m.CallsWithQuote))
	}
	if m.TotalCalls > 0 {
		m.AvgDurationSec = round1(float64(durationSum) / float64(m.TotalCalls))
	}
	m.TotalSavings = round1(m.TotalSavings)
	return m
}

// Percent is round(100*n/d), or 0 when d is 0.
func Percent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(d)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
