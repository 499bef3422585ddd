// Package extractor turns single call transcripts into persona extraction
// results. Extraction failures are never fatal for a batch: the call is
// logged and skipped.
package extractor

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/telemetry"
	"negotiation-eval-go/internal/types"
)

// MinTranscriptLength is the shortest transcript worth analysing.
const MinTranscriptLength = 50

var ErrNoTranscript = errors.New("transcript missing or too short")

// rawExtraction is the model's answer before validation.
type rawExtraction struct {
	VendorName          string   `json:"vendor_name"`
	NegotiationStyle    string   `json:"negotiation_style"`
	CommunicationStyle  string   `json:"communication_style"`
	LanguageMix         string   `json:"language_mix"`
	FirstOffer          *float64 `json:"first_offer"`
	FinalPrice          *float64 `json:"final_price"`
	ObjectionsUsed      []string `json:"objections_used"`
	DealClosingBehavior string   `json:"deal_closing_behavior"`
	NegotiationRounds   int      `json:"negotiation_rounds"`
	SamplePhrases       []struct {
		Category string `json:"category"`
		Phrase   string `json:"phrase"`
	} `json:"sample_phrases"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

type Extractor struct {
	llm         llm.Completer
	log         *logrus.Entry
	metrics     *telemetry.Metrics
	Concurrency int
}

func New(c llm.Completer, log *logger.Logger, m *telemetry.Metrics) *Extractor {
	return &Extractor{llm: c, log: log.Component("persona-extractor"), metrics: m, Concurrency: 1}
}

// HasTranscript reports whether call is long enough to extract from.
func HasTranscript(call types.CallRecord) bool {
	return len(strings.TrimSpace(call.Transcript)) >= MinTranscriptLength
}

// Extract analyses one call. It returns ErrNoTranscript for short or
// missing transcripts and a wrapped completion error when the model output
// is unusable; callers treat both as "no result for this call".
func (e *Extractor) Extract(ctx context.Context, call types.CallRecord) (*persona.PersonaExtractionResult, error) {
	if !HasTranscript(call) {
		return nil, ErrNoTranscript
	}
	raw, err := llm.CompleteJSON[rawExtraction](ctx, e.llm, llm.Request{
		Site:        llm.SitePersonaExtraction,
		System:      systemPrompt,
		Input:       BuildPrompt(call),
		Schema:      extractionSchema,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}
	res := normalize(call, raw)
	return &res, nil
}

// normalize maps the model answer onto the taxonomy. Unknown values fall
// back to neutral defaults; the reduction percent is always recomputed.
func normalize(call types.CallRecord, raw rawExtraction) persona.PersonaExtractionResult {
	res := persona.PersonaExtractionResult{
		CallID:              call.CallID,
		VendorName:          strings.TrimSpace(raw.VendorName),
		NegotiationStyle:    persona.NegotiationStyle(strings.ToLower(raw.NegotiationStyle)),
		CommunicationStyle:  persona.CommunicationStyle(strings.ToLower(raw.CommunicationStyle)),
		LanguageMix:         persona.LanguageMix(strings.ToLower(raw.LanguageMix)),
		DealClosingBehavior: persona.DealClosingBehavior(strings.ToLower(raw.DealClosingBehavior)),
		FirstOffer:          positive(raw.FirstOffer),
		FinalPrice:          positive(raw.FinalPrice),
		NegotiationRounds:   raw.NegotiationRounds,
	}
	if res.VendorName == "" {
		res.VendorName = call.VendorName
	}
	if !res.NegotiationStyle.Valid() {
		res.NegotiationStyle = persona.StyleProfessional
	}
	if !res.CommunicationStyle.Valid() {
		res.CommunicationStyle = persona.CommFormal
	}
	if !res.LanguageMix.Valid() {
		res.LanguageMix = persona.LangMixed
	}
	if !res.DealClosingBehavior.Valid() {
		res.DealClosingBehavior = persona.ClosingNeedsConvincing
	}
	if res.NegotiationRounds < 0 {
		res.NegotiationRounds = 0
	}
	res.PriceReductionPercent = persona.ReductionPercent(res.FirstOffer, res.FinalPrice)

	seen := map[persona.ObjectionType]bool{}
	for _, o := range raw.ObjectionsUsed {
		ot := persona.ObjectionType(strings.ToLower(strings.TrimSpace(o)))
		if ot.Valid() && !seen[ot] {
			seen[ot] = true
			res.ObjectionsUsed = append(res.ObjectionsUsed, ot)
		}
	}
	for _, sp := range raw.SamplePhrases {
		cat := persona.PhraseCategory(strings.ToLower(sp.Category))
		phrase := strings.TrimSpace(sp.Phrase)
		if cat.Valid() && phrase != "" {
			res.SamplePhrases = append(res.SamplePhrases, persona.SamplePhrase{Category: cat, Phrase: phrase})
		}
	}

	conf := raw.ExtractionConfidence
	switch {
	case math.IsNaN(conf) || conf < 0:
		conf = 0
	case conf > 100:
		conf = 100
	}
	res.ExtractionConfidence = int(math.Round(conf))
	return res
}

func positive(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	v := *p
	return &v
}

// BatchStats summarises one extraction batch. PersonasCreated is filled in
// once the extractions have been clustered.
type BatchStats struct {
	CallsAnalyzed     int     `json:"calls_analyzed"`
	Successful        int     `json:"successful"`
	AverageConfidence float64 `json:"average_confidence"`
	PersonasCreated   int     `json:"personas_created"`
}

type BatchResult struct {
	Extractions []persona.PersonaExtractionResult `json:"extractions"`
	Stats       BatchStats                        `json:"stats"`
}

// ExtractBatch extracts every call with a usable transcript. Results keep
// input order regardless of Concurrency.
func (e *Extractor) ExtractBatch(ctx context.Context, calls []types.CallRecord) BatchResult {
	eligible := make([]types.CallRecord, 0, len(calls))
	for _, c := range calls {
		if HasTranscript(c) {
			eligible = append(eligible, c)
		} else {
			e.count("skipped")
		}
	}
	e.log.WithFields(logrus.Fields{"calls": len(calls), "with_transcript": len(eligible)}).Info("starting persona extraction")

	results := make([]*persona.PersonaExtractionResult, len(eligible))
	run := func(ctx context.Context, i int) {
		call := eligible[i]
		res, err := e.Extract(ctx, call)
		if err != nil {
			e.count("failed")
			e.log.WithField("call_id", call.CallID).WithError(err).Warn("persona extraction failed, skipping call")
			return
		}
		e.count("ok")
		results[i] = res
	}

	if e.Concurrency > 1 {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(e.Concurrency)
		for i := range eligible {
			i := i
			g.Go(func() error {
				run(gCtx, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range eligible {
			run(ctx, i)
		}
	}

	out := BatchResult{Stats: BatchStats{CallsAnalyzed: len(eligible)}}
	confSum := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		out.Extractions = append(out.Extractions, *r)
		confSum += r.ExtractionConfidence
	}
	out.Stats.Successful = len(out.Extractions)
	if out.Stats.Successful > 0 {
		out.Stats.AverageConfidence = float64(confSum) / float64(out.Stats.Successful)
	}
	e.log.WithFields(logrus.Fields{
		"successful":     out.Stats.Successful,
		"avg_confidence": out.Stats.AverageConfidence,
	}).Info("persona extraction complete")
	return out
}

func (e *Extractor) count(result string) {
	if e.metrics != nil {
		e.metrics.ExtractionsTotal.WithLabelValues(result).Inc()
	}
}
