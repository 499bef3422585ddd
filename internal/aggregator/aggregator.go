package aggregator

import (
	"math"
	"sort"
)

// Sample is the per-call slice of a simulated call that aggregation needs.
type Sample struct {
	PersonaID             string
	QuoteObtained         bool
	NegotiationSuccess    bool
	PriceReductionPercent *int
	DurationSec           int
	Rounds                int
}

type Stats struct {
	Calls                  int     `json:"calls"`
	QuoteObtainedRate      int     `json:"quote_obtained_rate"`
	NegotiationSuccessRate int     `json:"negotiation_success_rate"`
	AvgPriceReduction      float64 `json:"avg_price_reduction_percent"`
	AvgDurationSec         float64 `json:"avg_duration_sec"`
	AvgRounds              float64 `json:"avg_rounds"`
}

type Summary struct {
	Overall   Stats            `json:"overall"`
	ByPersona map[string]Stats `json:"by_persona"`
}

// Aggregate folds samples into overall and per-persona statistics.
// Success rate is over quoted calls; average reduction over reduced calls.
func Aggregate(samples []Sample) Summary {
	byPersona := map[string][]Sample{}
	for _, s := range samples {
		byPersona[s.PersonaID] = append(byPersona[s.PersonaID], s)
	}
	out := Summary{Overall: stats(samples), ByPersona: make(map[string]Stats, len(byPersona))}
	for id, group := range byPersona {
		out.ByPersona[id] = stats(group)
	}
	return out
}

func stats(samples []Sample) Stats {
	st := Stats{Calls: len(samples)}
	if len(samples) == 0 {
		return st
	}
	quoted, success, reducedN := 0, 0, 0
	reductionSum, durationSum, roundsSum := 0, 0, 0
	for _, s := range samples {
		if s.QuoteObtained {
			quoted++
		}
		if s.NegotiationSuccess {
			success++
		}
		if s.PriceReductionPercent != nil {
			reductionSum += *s.PriceReductionPercent
			reducedN++
		}
		durationSum += s.DurationSec
		roundsSum += s.Rounds
	}
	st.QuoteObtainedRate = percent(quoted, len(samples))
	st.NegotiationSuccessRate = percent(success, quoted)
	if reducedN > 0 {
		st.AvgPriceReduction = round1(float64(reductionSum) / float64(reducedN))
	}
	st.AvgDurationSec = round1(float64(durationSum) / float64(len(samples)))
	st.AvgRounds = round1(float64(roundsSum) / float64(len(samples)))
	return st
}

// PersonaIDs returns the summary's persona ids sorted for stable output.
func (s Summary) PersonaIDs() []string {
	ids := make([]string, 0, len(s.ByPersona))
	for id := range s.ByPersona {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(d)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
