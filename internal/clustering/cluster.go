// Package clustering groups persona extractions into refined personas.
//
// Clusters are the six fixed negotiation styles: a deterministic categorical
// partition, not a statistical clustering. Each populated style yields one
// refined persona built on top of that style's baseline template.
package clustering

import (
	"math"
	"sort"
	"strings"
	"time"

	"negotiation-eval-go/internal/persona"
)

// RefinedSuffix is appended to the template id of every refined persona.
const RefinedSuffix = "_refined"

// Cluster builds at most one refined persona per negotiation style that has
// at least one extraction. Templates are read, never modified.
func Cluster(extractions []persona.PersonaExtractionResult, templates *persona.Templates, now time.Time) []persona.VendorPersona {
	buckets := make(map[persona.NegotiationStyle][]persona.PersonaExtractionResult, len(persona.AllNegotiationStyles))
	for _, e := range extractions {
		buckets[e.NegotiationStyle] = append(buckets[e.NegotiationStyle], e)
	}

	var out []persona.VendorPersona
	for _, style := range persona.AllNegotiationStyles {
		bucket := buckets[style]
		if len(bucket) == 0 {
			continue
		}
		base, ok := templates.ForStyle(style)
		if !ok {
			base = neutralPrior(style, templates)
		}
		out = append(out, refine(base, bucket, now))
	}
	return out
}

func refine(base persona.VendorPersona, bucket []persona.PersonaExtractionResult, now time.Time) persona.VendorPersona {
	p := base.Clone()
	p.ID = base.ID + RefinedSuffix
	p.Name = base.Name + " (refined)"

	reductionSum, reductionN := 0, 0
	roundsSum := 0
	callIDs := make([]string, 0, len(bucket))
	for _, e := range bucket {
		if e.PriceReductionPercent != nil {
			reductionSum += *e.PriceReductionPercent
			reductionN++
		}
		roundsSum += e.NegotiationRounds
		callIDs = append(callIDs, e.CallID)
	}
	if reductionN > 0 {
		p.PriceFlexibility = roundDiv(reductionSum, reductionN)
	}
	p.AverageRoundsToClose = roundDiv(roundsSum, len(bucket))

	if objections := topObjections(bucket, persona.MaxRefinedObjections); len(objections) > 0 {
		p.CommonObjections = objections
	}

	for _, cat := range persona.AllPhraseCategories {
		if phrases := collectPhrases(bucket, cat); len(phrases) > 0 {
			p.ResponsePatterns.Set(cat, phrases)
		}
	}

	p.Confidence = ConfidenceFor(len(bucket))
	p.SourceCallIDs = callIDs
	p.CreatedAt = now
	return p
}

// ConfidenceFor maps bucket size to confidence: high at 5+, medium at 2-4.
func ConfidenceFor(n int) persona.Confidence {
	switch {
	case n >= 5:
		return persona.ConfidenceHigh
	case n >= 2:
		return persona.ConfidenceMedium
	default:
		return persona.ConfidenceLow
	}
}

// topObjections returns the n most used tags; ties keep first-seen order.
func topObjections(bucket []persona.PersonaExtractionResult, n int) []persona.ObjectionType {
	counts := map[persona.ObjectionType]int{}
	var order []persona.ObjectionType
	for _, e := range bucket {
		for _, o := range e.ObjectionsUsed {
			if counts[o] == 0 {
				order = append(order, o)
			}
			counts[o]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func collectPhrases(bucket []persona.PersonaExtractionResult, cat persona.PhraseCategory) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range bucket {
		for _, sp := range e.SamplePhrases {
			if sp.Category != cat {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(sp.Phrase))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(sp.Phrase))
			if len(out) == persona.MaxPhrasesPerCategory {
				return out
			}
		}
	}
	return out
}

// neutralPrior stands in for a style that has no baseline template: numeric
// traits are the template averages, everything else comes from the first
// template.
func neutralPrior(style persona.NegotiationStyle, templates *persona.Templates) persona.VendorPersona {
	all := templates.All()
	p := persona.VendorPersona{
		ID:                  string(style),
		Name:                titleCase(string(style)),
		NegotiationStyle:    style,
		CommunicationStyle:  persona.CommFormal,
		LanguageMix:         persona.LangMixed,
		ObjectionFrequency:  persona.FrequencyMedium,
		DealClosingBehavior: persona.ClosingNeedsConvincing,
	}
	if len(all) == 0 {
		return p
	}
	first := all[0]
	p.Description = "Vendor observed with a " + string(style) + " negotiation style."
	p.CommonObjections = first.CommonObjections
	p.ResponsePatterns = first.ResponsePatterns
	var flex, markup, discount, rounds int
	for _, t := range all {
		flex += t.PriceFlexibility
		markup += t.TypicalFirstOfferMarkup
		discount += t.MinimumAcceptableDiscount
		rounds += t.AverageRoundsToClose
	}
	n := len(all)
	p.PriceFlexibility = roundDiv(flex, n)
	p.TypicalFirstOfferMarkup = roundDiv(markup, n)
	p.MinimumAcceptableDiscount = roundDiv(discount, n)
	p.AverageRoundsToClose = roundDiv(rounds, n)
	return p
}

// Library returns the templates followed by the refined personas.
func Library(templates *persona.Templates, refined []persona.VendorPersona) []persona.VendorPersona {
	out := templates.All()
	for _, p := range refined {
		out = append(out, p.Clone())
	}
	return out
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
