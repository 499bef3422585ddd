package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pct(v int) *int { return &v }

func TestAggregate(t *testing.T) {
	samples := []Sample{
		{PersonaID: "firm", QuoteObtained: true, NegotiationSuccess: true, PriceReductionPercent: pct(10), DurationSec: 21, Rounds: 1},
		{PersonaID: "firm", QuoteObtained: true, DurationSec: 14, Rounds: 0},
		{PersonaID: "flex", QuoteObtained: true, NegotiationSuccess: true, PriceReductionPercent: pct(20), DurationSec: 35, Rounds: 3},
		{PersonaID: "flex", DurationSec: 7},
	}
	s := Aggregate(samples)

	assert.Equal(t, 4, s.Overall.Calls)
	assert.Equal(t, 75, s.Overall.QuoteObtainedRate)
	assert.Equal(t, 67, s.Overall.NegotiationSuccessRate)
	assert.Equal(t, 15.0, s.Overall.AvgPriceReduction)
	assert.Equal(t, 19.3, s.Overall.AvgDurationSec)
	assert.Equal(t, 1.0, s.Overall.AvgRounds)

	assert.Equal(t, []string{"firm", "flex"}, s.PersonaIDs())
	assert.Equal(t, 100, s.ByPersona["firm"].QuoteObtainedRate)
	assert.Equal(t, 50, s.ByPersona["firm"].NegotiationSuccessRate)
	assert.Equal(t, 50, s.ByPersona["flex"].QuoteObtainedRate)
	assert.Equal(t, 100, s.ByPersona["flex"].NegotiationSuccessRate)
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	assert.Equal(t, Stats{}, s.Overall)
	assert.Empty(t, s.ByPersona)
}
