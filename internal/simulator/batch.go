package simulator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"negotiation-eval-go/internal/aggregator"
	"negotiation-eval-go/internal/persona"
)

// DefaultBotScript is the bot side used for batch evaluation.
func DefaultBotScript() []string {
	return []string{
		"Namaste ji, main ek cab booking ke liye call kar raha hoon. Delhi se Agra, kal subah 6 baje, sedan chahiye.",
		"Is trip ka aapka rate kya hoga?",
		"Thoda zyada lag raha hai. Kya aap thoda kam kar sakte hain?",
		"Humein doosre vendors se isse kam rate mil raha hai. Aapka best price kya hoga?",
		"Agar aap thoda aur kam karein toh main abhi confirm kar deta hoon.",
		"Theek hai, kya yeh aapka final price hai?",
		"Dhanyavaad, main aapko confirm karke batata hoon.",
	}
}

// DefaultTrip and DefaultMarket describe the benchmark trip.
var (
	DefaultTrip = TripDetails{
		Pickup: "Delhi", Drop: "Agra", Date: "tomorrow 06:00",
		VehicleType: "sedan", Passengers: 3, TripType: "one_way",
	}
	DefaultMarket = MarketPrice{Low: 2800, Mid: 3200, High: 3800}
)

type BatchConfig struct {
	Size         int
	Personas     []persona.VendorPersona
	Distribution []persona.DistributionShare // empty = equal split over Personas
	Trip         TripDetails
	Market       MarketPrice
	Script       []string
	Concurrency  int
}

type BatchResult struct {
	Results []SimulatedCallResult `json:"results"`
	Failed  int                   `json:"failed"`
	Summary aggregator.Summary    `json:"summary"`
}

// Population builds Size fresh vendor contexts spread over the personas by
// share. Counts use largest remainders so they always sum to Size.
func Population(cfg BatchConfig) ([]VendorContext, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.Size)
	}
	if len(cfg.Personas) == 0 {
		return nil, fmt.Errorf("no personas to simulate")
	}
	byID := make(map[string]persona.VendorPersona, len(cfg.Personas))
	for _, p := range cfg.Personas {
		byID[p.ID] = p
	}

	shares := cfg.Distribution
	if len(shares) == 0 {
		for _, p := range cfg.Personas {
			shares = append(shares, persona.DistributionShare{PersonaID: p.ID, Share: 1 / float64(len(cfg.Personas))})
		}
	}
	total := 0.0
	for _, s := range shares {
		if _, ok := byID[s.PersonaID]; !ok {
			return nil, fmt.Errorf("distribution references unknown persona %q", s.PersonaID)
		}
		if s.Share < 0 {
			return nil, fmt.Errorf("negative share for persona %q", s.PersonaID)
		}
		total += s.Share
	}
	if total <= 0 {
		return nil, fmt.Errorf("distribution shares sum to zero")
	}

	counts := make([]int, len(shares))
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(shares))
	assigned := 0
	for i, s := range shares {
		exact := float64(cfg.Size) * s.Share / total
		counts[i] = int(math.Floor(exact))
		assigned += counts[i]
		rems[i] = rem{i, exact - float64(counts[i])}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < cfg.Size; i++ {
		counts[rems[i%len(rems)].idx]++
		assigned++
	}

	out := make([]VendorContext, 0, cfg.Size)
	for i, s := range shares {
		for n := 0; n < counts[i]; n++ {
			out = append(out, VendorContext{
				Persona: byID[s.PersonaID].Clone(),
				Trip:    cfg.Trip,
				Market:  cfg.Market,
				State:   NewState(),
			})
		}
	}
	return out, nil
}

// RunEvalBatch simulates every vendor in the population with the same
// script and aggregates the outcomes. A vendor whose simulation errors or
// panics is logged and left out of the aggregates.
func (s *Simulator) RunEvalBatch(ctx context.Context, cfg BatchConfig) (BatchResult, error) {
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultBotScript()
	}
	if cfg.Market.Mid == 0 {
		cfg.Market = DefaultMarket
	}
	if cfg.Trip == (TripDetails{}) {
		cfg.Trip = DefaultTrip
	}
	vendors, err := Population(cfg)
	if err != nil {
		return BatchResult{}, err
	}
	s.log.WithFields(logrus.Fields{"vendors": len(vendors), "script_lines": len(cfg.Script)}).Info("starting simulation batch")

	results := make([]*SimulatedCallResult, len(vendors))
	run := func(ctx context.Context, i int) {
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("persona", vendors[i].Persona.ID).WithField("panic", r).Error("simulation panicked, excluding vendor")
			}
		}()
		res, err := s.Run(ctx, vendors[i], cfg.Script)
		if err != nil {
			s.log.WithField("persona", vendors[i].Persona.ID).WithError(err).Warn("simulation failed, excluding vendor")
			return
		}
		results[i] = &res
	}

	if cfg.Concurrency > 1 {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Concurrency)
		for i := range vendors {
			i := i
			g.Go(func() error {
				run(gCtx, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range vendors {
			run(ctx, i)
		}
	}

	out := BatchResult{}
	samples := make([]aggregator.Sample, 0, len(vendors))
	for _, r := range results {
		if r == nil {
			out.Failed++
			continue
		}
		out.Results = append(out.Results, *r)
		samples = append(samples, Sample(*r))
	}
	out.Summary = aggregator.Aggregate(samples)
	s.log.WithFields(logrus.Fields{
		"completed":  len(out.Results),
		"failed":     out.Failed,
		"quote_rate": out.Summary.Overall.QuoteObtainedRate,
	}).Info("simulation batch complete")
	return out, nil
}

// Sample projects a result onto what aggregation needs.
func Sample(r SimulatedCallResult) aggregator.Sample {
	return aggregator.Sample{
		PersonaID:             r.Persona.ID,
		QuoteObtained:         r.Outcome.QuoteObtained,
		NegotiationSuccess:    r.Outcome.PriceReduced,
		PriceReductionPercent: r.Outcome.PriceReductionPercent,
		DurationSec:           r.Outcome.CallDurationSec,
		Rounds:                r.Outcome.NegotiationRounds,
	}
}
