package evalmetrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"negotiation-eval-go/internal/types"
)

var day = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func call(id string, status types.CallStatus, quoted, negotiated float64) types.CallRecord {
	c := types.CallRecord{CallID: id, Status: status, Timestamp: day, DurationSec: 60}
	if quoted > 0 {
		c.QuotedPrice = types.Price(quoted)
	}
	if negotiated > 0 {
		c.NegotiatedPrice = types.Price(negotiated)
	}
	return c
}

// scenarioA: 10 calls, 6 quoted, 3 of them negotiated down.
func scenarioA() []types.CallRecord {
	return []types.CallRecord{
		call("1", types.StatusCompleted, 4000, 3600),
		call("2", types.StatusCompleted, 3000, 2700),
		call("3", types.StatusCompleted, 5000, 4000),
		call("4", types.StatusCompleted, 3500, 3500),
		call("5", types.StatusCompleted, 3200, 0),
		call("6", types.StatusCompleted, 2800, 0),
		call("7", types.StatusNoAnswer, 0, 0),
		call("8", types.StatusBusy, 0, 0),
		call("9", types.StatusRejected, 0, 0),
		call("10", types.StatusFailed, 0, 0),
	}
}

func TestCalculateBasicScenarioA(t *testing.T) {
	m := CalculateBasic(scenarioA())

	assert.Equal(t, 10, m.TotalCalls)
	assert.Equal(t, 6, m.CallsWithQuote)
	assert.Equal(t, 3, m.CallsNegotiated)
	assert.Equal(t, 60, m.QuoteObtainedRate)
	assert.Equal(t, 50, m.NegotiationSuccessRate)
	assert.Equal(t, 0, m.NegotiationAttemptRate)
	assert.Equal(t, 100, m.SafetyRate)
	assert.False(t, m.TranscriptsAnalyzed)

	// reductions 10%, 10%, 20%
	assert.Equal(t, 13.3, m.AvgPriceReductionPercent)
	assert.Equal(t, 1700.0, m.TotalSavings)
	assert.Equal(t, 3583.3, m.AvgQuotedPrice)
	assert.Equal(t, 3300.0, m.AvgFinalPrice)
	assert.Equal(t, OutcomeBreakdown{Completed: 6, NoAnswer: 1, Busy: 1, Rejected: 1, Failed: 1}, m.Outcomes)
}

func TestCalculateBasicScenarioB(t *testing.T) {
	m := CalculateBasic(nil)
	assert.Equal(t, EvalMetrics{SafetyRate: 100, SafetyIssues: []IssueCount{}}, m)
}

func TestCalculateBasicIgnoresBadPrices(t *testing.T) {
	calls := []types.CallRecord{
		call("a", types.StatusCompleted, 0, 2000),
		{CallID: "b", Status: types.StatusCompleted, QuotedPrice: types.Price(-10)},
		call("c", types.StatusCompleted, 3000, 3300),
		{CallID: "d", Status: "voicemail"},
		{CallID: "e", Status: types.StatusCompleted, QuotedPrice: types.Price(3000), NegotiatedPrice: types.Price(0)},
	}
	m := CalculateBasic(calls)
	assert.Equal(t, 2, m.CallsWithQuote)
	assert.Equal(t, 0, m.CallsNegotiated)
	assert.Equal(t, 40, m.QuoteObtainedRate)
	assert.Equal(t, 0, m.NegotiationSuccessRate)
	assert.Equal(t, 0.0, m.AvgPriceReductionPercent)
	assert.Equal(t, 0.0, m.TotalSavings)
	assert.Equal(t, 4, m.Outcomes.Completed)
	assert.Equal(t, 0, m.Outcomes.Count("voicemail"))
}

func TestCalculateBasicIdempotent(t *testing.T) {
	calls := scenarioA()
	assert.Equal(t, CalculateBasic(calls), CalculateBasic(calls))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(3, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 100, Percent(5, 5))
}
