// Package report renders eval metrics as a Markdown summary.
package report

import (
	"fmt"
	"strings"

	"negotiation-eval-go/internal/actionable"
	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/types"
)

// Render formats m, with an optional trend section when cmp is non-nil and
// a recommendations section when cards is non-empty. It has no side effects.
func Render(m evalmetrics.EvalMetrics, cmp *evalmetrics.EvalComparison, cards []actionable.ActionCard) string {
	var b strings.Builder

	b.WriteString("# Negotiation Bot Evaluation\n\n")

	b.WriteString("## Headline Metrics\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Quote obtained rate | %d%% |\n", m.QuoteObtainedRate)
	fmt.Fprintf(&b, "| Negotiation attempt rate | %s |\n", measured(m.NegotiationAttemptRate, m.TranscriptsAnalyzed))
	fmt.Fprintf(&b, "| Negotiation success rate | %d%% |\n", m.NegotiationSuccessRate)
	fmt.Fprintf(&b, "| Safety rate | %s |\n", measured(m.SafetyRate, m.TranscriptsAnalyzed))
	if !m.TranscriptsAnalyzed {
		b.WriteString("\n_Transcripts were not analysed: attempt rate defaults to 0% and safety rate to 100%._\n")
	}

	b.WriteString("\n## Call Statistics\n\n")
	fmt.Fprintf(&b, "- Total calls: %d\n", m.TotalCalls)
	fmt.Fprintf(&b, "- Calls with a quote: %d\n", m.CallsWithQuote)
	fmt.Fprintf(&b, "- Calls negotiated down: %d\n", m.CallsNegotiated)
	if m.TranscriptsAnalyzed {
		fmt.Fprintf(&b, "- Transcripts analysed: %d\n", m.CallsAnalyzed)
	}
	fmt.Fprintf(&b, "- Average duration: %.1fs\n", m.AvgDurationSec)

	b.WriteString("\n## Price Statistics\n\n")
	fmt.Fprintf(&b, "- Average quoted price: %s\n", rupees(m.AvgQuotedPrice))
	fmt.Fprintf(&b, "- Average final price: %s\n", rupees(m.AvgFinalPrice))
	fmt.Fprintf(&b, "- Average reduction (negotiated calls): %.1f%%\n", m.AvgPriceReductionPercent)
	fmt.Fprintf(&b, "- Total savings: %s\n", rupees(m.TotalSavings))

	b.WriteString("\n## Outcome Breakdown\n\n")
	b.WriteString("| Status | Calls |\n|---|---|\n")
	for _, s := range types.AllStatuses {
		fmt.Fprintf(&b, "| %s | %d |\n", s, m.Outcomes.Count(s))
	}

	if len(m.SafetyIssues) > 0 {
		b.WriteString("\n## Safety Issues\n\n")
		for _, is := range m.SafetyIssues {
			fmt.Fprintf(&b, "- %s (%d)\n", is.Issue, is.Count)
		}
	}

	if cmp != nil {
		b.WriteString("\n## Trend vs Previous Run\n\n")
		b.WriteString("| Metric | Previous | Current | Change |\n|---|---|---|---|\n")
		trendRow(&b, "Quote obtained rate", cmp.Previous.QuoteObtainedRate, cmp.Current.QuoteObtainedRate, cmp.Deltas.QuoteObtainedRate)
		trendRow(&b, "Negotiation attempt rate", cmp.Previous.NegotiationAttemptRate, cmp.Current.NegotiationAttemptRate, cmp.Deltas.NegotiationAttemptRate)
		trendRow(&b, "Negotiation success rate", cmp.Previous.NegotiationSuccessRate, cmp.Current.NegotiationSuccessRate, cmp.Deltas.NegotiationSuccessRate)
		trendRow(&b, "Safety rate", cmp.Previous.SafetyRate, cmp.Current.SafetyRate, cmp.Deltas.SafetyRate)
		verdict := "No overall improvement"
		if cmp.Improvement {
			verdict = "Improvement"
		}
		fmt.Fprintf(&b, "\n**Verdict:** %s (%d of 4 metrics favorable)\n", verdict, cmp.Favorable)
	}

	if len(cards) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, c := range cards {
			fmt.Fprintf(&b, "- **[%s]** %s\n  - Action: %s\n  - Impact: %s\n", c.Priority, c.Insight, c.Action, c.Impact)
		}
	}
	return b.String()
}

func measured(v int, analysed bool) string {
	if !analysed {
		return fmt.Sprintf("%d%% (default)", v)
	}
	return fmt.Sprintf("%d%%", v)
}

func trendRow(b *strings.Builder, name string, prev, cur, delta int) {
	fmt.Fprintf(b, "| %s | %d%% | %d%% | %+d |\n", name, prev, cur, delta)
}

func rupees(v float64) string {
	return fmt.Sprintf("Rs %.0f", v)
}
