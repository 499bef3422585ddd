// Package actionable turns eval metrics into short recommendation cards.
package actionable

import (
	"fmt"

	"negotiation-eval-go/internal/evalmetrics"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type ActionCard struct {
	Priority Priority `json:"priority"`
	Insight  string   `json:"insight"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
}

// Thresholds below which a headline rate produces a card.
const (
	minQuoteRate   = 70
	minAttemptRate = 80
	minSuccessRate = 40
	minReduction   = 5.0
	regressionStep = 5
)

// Generate returns the cards for m, most urgent first. cmp may be nil.
func Generate(m evalmetrics.EvalMetrics, cmp *evalmetrics.EvalComparison) []ActionCard {
	var cards []ActionCard

	if m.TranscriptsAnalyzed && m.SafetyRate < 100 {
		top := "unspecified issues"
		if len(m.SafetyIssues) > 0 {
			top = fmt.Sprintf("%q (%d calls)", m.SafetyIssues[0].Issue, m.SafetyIssues[0].Count)
		}
		cards = append(cards, ActionCard{
			Priority: PriorityHigh,
			Insight:  fmt.Sprintf("Safety rate is %d%%; most frequent issue: %s", m.SafetyRate, top),
			Action:   "Review flagged transcripts and tighten the bot's tone and honesty guardrails",
			Impact:   "Protect vendor relationships and brand trust",
		})
	}

	if cmp != nil {
		d := cmp.Deltas
		for _, r := range []struct {
			name  string
			delta int
		}{
			{"Quote-obtained rate", d.QuoteObtainedRate},
			{"Negotiation-attempt rate", d.NegotiationAttemptRate},
			{"Negotiation-success rate", d.NegotiationSuccessRate},
		} {
			if r.delta <= -regressionStep {
				cards = append(cards, ActionCard{
					Priority: PriorityHigh,
					Insight:  fmt.Sprintf("%s dropped %d points since the previous run", r.name, -r.delta),
					Action:   "Diff the bot script and prompts against the previous release and re-run the synthetic batch",
					Impact:   "Catch regressions before they reach live vendors",
				})
			}
		}
	}

	if m.TotalCalls > 0 && m.QuoteObtainedRate < minQuoteRate {
		cards = append(cards, ActionCard{
			Priority: PriorityMedium,
			Insight:  fmt.Sprintf("Only %d%% of calls end with a quote (%d no-answer, %d busy, %d rejected)", m.QuoteObtainedRate, m.Outcomes.NoAnswer, m.Outcomes.Busy, m.Outcomes.Rejected),
			Action:   "Ask for the price earlier in the script and retry unanswered vendors at a different time",
			Impact:   "More comparable quotes per booking",
		})
	}

	if m.TranscriptsAnalyzed && m.CallsWithQuote > 0 && m.NegotiationAttemptRate < minAttemptRate {
		cards = append(cards, ActionCard{
			Priority: PriorityMedium,
			Insight:  fmt.Sprintf("The bot pushed back on price in only %d%% of quoted calls", m.NegotiationAttemptRate),
			Action:   "Make a counter-offer mandatory after every first quote",
			Impact:   "Higher negotiation success and savings",
		})
	}

	if m.CallsWithQuote > 0 && m.NegotiationSuccessRate < minSuccessRate {
		cards = append(cards, ActionCard{
			Priority: PriorityMedium,
			Insight:  fmt.Sprintf("Price came down in %d%% of quoted calls", m.NegotiationSuccessRate),
			Action:   "Use the benchmark price from earlier vendors and cite market rates when countering",
			Impact:   "Lower average booking cost",
		})
	} else if m.CallsNegotiated > 0 && m.AvgPriceReductionPercent < minReduction {
		cards = append(cards, ActionCard{
			Priority: PriorityLow,
			Insight:  fmt.Sprintf("Negotiated calls save only %.1f%% on average", m.AvgPriceReductionPercent),
			Action:   "Open with a lower counter-offer anchored below the market mid price",
			Impact:   "Larger savings per negotiated call",
		})
	}

	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Priority: PriorityLow,
			Insight:  "No metric below target",
			Action:   "Monitor and collect more data",
			Impact:   "Low immediate intervention",
		})
	}
	return cards
}
