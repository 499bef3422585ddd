package extractor

import (
	"fmt"
	"strings"

	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/types"
)

const systemPrompt = `You are an analyst of recorded price negotiations between a cab-booking voice agent and transport vendors.
You describe the VENDOR's behaviour only, using the fixed taxonomy you are given. Never invent prices that were not spoken.`

const extractionSchema = `{
  "vendor_name": "",
  "negotiation_style": "firm|flexible|anchor_high|aggressive|friendly|professional",
  "communication_style": "terse|chatty|formal|casual|impatient",
  "language_mix": "pure_primary|pure_secondary|mixed|regional_mix",
  "first_offer": 0,
  "final_price": 0,
  "objections_used": [],
  "deal_closing_behavior": "accepts_quickly|needs_convincing|final_offer|asks_callback|offers_alternative",
  "negotiation_rounds": 0,
  "sample_phrases": [{"category": "greeting|price_quote|rejection|acceptance|farewell", "phrase": ""}],
  "extraction_confidence": 0
}`

// BuildPrompt renders the extraction request for one call.
func BuildPrompt(call types.CallRecord) string {
	var b strings.Builder

	b.WriteString("TAXONOMY\n")
	fmt.Fprintf(&b, "negotiation styles: %s\n", join(persona.AllNegotiationStyles))
	fmt.Fprintf(&b, "communication styles: %s\n", join(persona.AllCommunicationStyles))
	fmt.Fprintf(&b, "language mix: %s (primary = Hindi, secondary = English)\n", join(persona.AllLanguageMixes))
	fmt.Fprintf(&b, "objection types: %s\n", join(persona.AllObjectionTypes))
	fmt.Fprintf(&b, "deal closing behaviours: %s\n", join(persona.AllClosingBehaviors))
	fmt.Fprintf(&b, "phrase categories: %s\n\n", join(persona.AllPhraseCategories))

	b.WriteString("OBSERVED PRICES\n")
	fmt.Fprintf(&b, "quoted price: %s\n", priceOrUnknown(call.QuotedPrice))
	fmt.Fprintf(&b, "negotiated price: %s\n\n", priceOrUnknown(call.NegotiatedPrice))

	b.WriteString(`RULES
- first_offer is the first price the vendor said; final_price the last agreed or offered price. Use null if not spoken.
- negotiation_rounds counts vendor price changes after the first offer.
- sample_phrases: up to 2 verbatim vendor lines per category.
- extraction_confidence: 0-100, how clearly the transcript shows the vendor's behaviour.

TRANSCRIPT:
"""
`)
	b.WriteString(call.Transcript)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

func priceOrUnknown(p *float64) string {
	if p == nil || *p <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.0f", *p)
}

func join[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
