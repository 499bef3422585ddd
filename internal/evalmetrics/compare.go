package evalmetrics

// improvementThreshold is how many of the four headline deltas must be
// favorable for a run to count as an improvement.
const improvementThreshold = 3

type MetricDeltas struct {
	QuoteObtainedRate      int `json:"quote_obtained_rate"`
	NegotiationAttemptRate int `json:"negotiation_attempt_rate"`
	NegotiationSuccessRate int `json:"negotiation_success_rate"`
	SafetyRate             int `json:"safety_rate"`
}

type EvalComparison struct {
	Current     EvalMetrics  `json:"current"`
	Previous    EvalMetrics  `json:"previous"`
	Deltas      MetricDeltas `json:"deltas"`
	Favorable   int          `json:"favorable"`
	Improvement bool         `json:"improvement"`
}

// Compare diffs the headline rates. Rates must rise to be favorable;
// safety only has to hold.
func Compare(current, previous EvalMetrics) EvalComparison {
	d := MetricDeltas{
		QuoteObtainedRate:      current.QuoteObtainedRate - previous.QuoteObtainedRate,
		NegotiationAttemptRate: current.NegotiationAttemptRate - previous.NegotiationAttemptRate,
		NegotiationSuccessRate: current.NegotiationSuccessRate - previous.NegotiationSuccessRate,
		SafetyRate:             current.SafetyRate - previous.SafetyRate,
	}
	favorable := 0
	for _, v := range []int{d.QuoteObtainedRate, d.NegotiationAttemptRate, d.NegotiationSuccessRate} {
		if v > 0 {
			favorable++
		}
	}
	if d.SafetyRate >= 0 {
		favorable++
	}
	return EvalComparison{
		Current:     current,
		Previous:    previous,
		Deltas:      d,
		Favorable:   favorable,
		Improvement: favorable >= improvementThreshold,
	}
}
