package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallRecordPriceHelpers(t *testing.T) {
	tests := []struct {
		name       string
		rec        CallRecord
		hasQuote   bool
		negotiated bool
		final      float64
	}{
		{"no prices", CallRecord{}, false, false, 0},
		{"zero quote", CallRecord{QuotedPrice: Price(0)}, false, false, 0},
		{"quote only", CallRecord{QuotedPrice: Price(3000)}, true, false, 3000},
		{"reduced", CallRecord{QuotedPrice: Price(3000), NegotiatedPrice: Price(2700)}, true, true, 2700},
		{"same price", CallRecord{QuotedPrice: Price(3000), NegotiatedPrice: Price(3000)}, true, false, 3000},
		{"zero negotiated", CallRecord{QuotedPrice: Price(3000), NegotiatedPrice: Price(0)}, true, false, 3000},
		{"negative negotiated", CallRecord{QuotedPrice: Price(3000), NegotiatedPrice: Price(-5)}, true, false, 3000},
		{"negotiated without quote", CallRecord{NegotiatedPrice: Price(2000)}, false, false, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasQuote, tt.rec.HasQuote())
			assert.Equal(t, tt.negotiated, tt.rec.Negotiated())
			assert.Equal(t, tt.final, tt.rec.FinalPrice())
		})
	}
}
