package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/telemetry"
)

const (
	botTurnSeconds    = 3
	vendorTurnSeconds = 4

	fallbackAck = "Ji, samajh gaya. Aur kuch batana hai?"
)

const vendorSystemPrompt = `You are role-playing a transport VENDOR on a phone call with a cab-booking assistant.
Stay in character as the persona described in the context. Speak the way the persona speaks (language mix, tone, phrases).
Pricing rules:
- Your first price must be the first_offer_price from the context.
- Never go below minimum_price.
- Only include new_price when you state a price in this turn.
Reply with one short spoken turn.`

const vendorSchema = `{
  "response": "what the vendor says",
  "new_price": null,
  "intent": "greeting|quoting|rejecting_offer|counter_offering|accepting|objecting|ending_call|asking_details",
  "objection": "optional objection type when intent is objecting"
}`

// vendorTurnInput is the structured context sent for each vendor turn.
type vendorTurnInput struct {
	Persona      personaBrief       `json:"persona"`
	Trip         TripDetails        `json:"trip"`
	Market       MarketPrice        `json:"market"`
	Pricing      Anchors            `json:"pricing"`
	State        State              `json:"state"`
	Conversation []ConversationTurn `json:"conversation"`
}

type personaBrief struct {
	ID                  string                      `json:"id"`
	Description         string                      `json:"description"`
	NegotiationStyle    persona.NegotiationStyle    `json:"negotiation_style"`
	CommunicationStyle  persona.CommunicationStyle  `json:"communication_style"`
	LanguageMix         persona.LanguageMix         `json:"language_mix"`
	CommonObjections    []persona.ObjectionType     `json:"common_objections"`
	DealClosingBehavior persona.DealClosingBehavior `json:"deal_closing_behavior"`
	AverageRounds       int                         `json:"average_rounds_to_close"`
	ResponsePatterns    persona.ResponsePatterns    `json:"response_patterns"`
}

func brief(p persona.VendorPersona) personaBrief {
	return personaBrief{
		ID:                  p.ID,
		Description:         p.Description,
		NegotiationStyle:    p.NegotiationStyle,
		CommunicationStyle:  p.CommunicationStyle,
		LanguageMix:         p.LanguageMix,
		CommonObjections:    p.CommonObjections,
		DealClosingBehavior: p.DealClosingBehavior,
		AverageRounds:       p.AverageRoundsToClose,
		ResponsePatterns:    p.ResponsePatterns,
	}
}

type Simulator struct {
	llm     llm.Completer
	log     *logrus.Entry
	metrics *telemetry.Metrics
}

func New(c llm.Completer, log *logger.Logger, m *telemetry.Metrics) *Simulator {
	return &Simulator{llm: c, log: log.Component("simulator"), metrics: m}
}

// Run plays script against the vendor described by vc. Completion failures
// never abort the call; only an invalid context or a cancelled ctx does.
func (s *Simulator) Run(ctx context.Context, vc VendorContext, script []string) (SimulatedCallResult, error) {
	if len(script) == 0 {
		return SimulatedCallResult{}, errors.New("empty bot script")
	}
	if vc.Market.Mid <= 0 {
		return SimulatedCallResult{}, fmt.Errorf("market mid price must be positive, got %v", vc.Market.Mid)
	}
	if vc.State.Phase == "" {
		vc.State = NewState()
	}

	anchors := Pricing(vc.Persona, vc.Market)
	callID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"call_id": callID, "persona": vc.Persona.ID})

	var conv []ConversationTurn
	elapsed := 0
	for _, line := range script {
		if err := ctx.Err(); err != nil {
			return SimulatedCallResult{}, err
		}

		elapsed += botTurnSeconds
		conv = append(conv, ConversationTurn{Speaker: SpeakerBot, Text: line, Timestamp: elapsed})

		reply := s.vendorTurn(ctx, vc, anchors, conv, log)

		elapsed += vendorTurnSeconds
		conv = append(conv, ConversationTurn{Speaker: SpeakerVendor, Text: reply.Text, Intent: reply.Intent, Timestamp: elapsed})

		vc.State = Apply(vc.State, reply, vc.Persona.NegotiationStyle)
		if vc.State.Phase == PhaseTerminated {
			break
		}
	}
	vc.State = Finish(vc.State)

	res := SimulatedCallResult{
		CallID:       callID,
		Persona:      vc.Persona,
		Trip:         vc.Trip,
		Anchors:      anchors,
		Conversation: conv,
		Outcome:      outcome(vc.State, elapsed),
		Termination:  vc.State.Termination,
	}
	res.EvalMetrics = callEval(res.Outcome)

	if s.metrics != nil {
		label := "unquoted"
		if res.Outcome.QuoteObtained {
			label = "quoted"
		}
		s.metrics.SimulatedCalls.WithLabelValues(vc.Persona.ID, label).Inc()
	}
	log.WithFields(logrus.Fields{
		"turns":       len(conv),
		"rounds":      res.Outcome.NegotiationRounds,
		"termination": res.Termination,
	}).Debug("simulated call finished")
	return res, nil
}

func (s *Simulator) vendorTurn(ctx context.Context, vc VendorContext, anchors Anchors, conv []ConversationTurn, log *logrus.Entry) VendorReply {
	input, err := json.Marshal(vendorTurnInput{
		Persona:      brief(vc.Persona),
		Trip:         vc.Trip,
		Market:       vc.Market,
		Pricing:      anchors,
		State:        vc.State,
		Conversation: conv,
	})
	if err != nil {
		return s.fallback(vc.State, anchors, log, err)
	}

	reply, err := llm.CompleteJSON[VendorReply](ctx, s.llm, llm.Request{
		Site:        llm.SiteVendorResponse,
		System:      vendorSystemPrompt,
		Input:       string(input),
		Schema:      vendorSchema,
		Temperature: 0.7,
	})
	if err != nil {
		return s.fallback(vc.State, anchors, log, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return s.fallback(vc.State, anchors, log, errors.New("empty vendor response"))
	}
	return sanitize(reply, vc.State, anchors)
}

// sanitize coerces a model reply into the vocabulary: non-positive prices
// are dropped, prices below the floor are raised to it, and unknown intents
// are inferred from whether a price was given.
func sanitize(r VendorReply, st State, a Anchors) VendorReply {
	r.Text = strings.TrimSpace(r.Text)
	if r.NewPrice != nil {
		if *r.NewPrice <= 0 {
			r.NewPrice = nil
		} else if *r.NewPrice < a.MinimumPrice {
			floor := a.MinimumPrice
			r.NewPrice = &floor
		}
	}
	r.Intent = Intent(strings.ToLower(string(r.Intent)))
	if !r.Intent.Valid() {
		switch {
		case r.NewPrice != nil && st.QuotedPrice == nil:
			r.Intent = IntentQuoting
		case r.NewPrice != nil:
			r.Intent = IntentCounterOffering
		default:
			r.Intent = IntentAskingDetails
		}
	}
	if r.Objection != "" && !r.Objection.Valid() {
		r.Objection = ""
	}
	return r
}

// fallback is the deterministic reply used when the completion fails:
// quote the first offer if nothing has been quoted, otherwise acknowledge.
func (s *Simulator) fallback(st State, a Anchors, log *logrus.Entry, cause error) VendorReply {
	log.WithError(cause).Warn("vendor response failed, using fallback")
	if s.metrics != nil {
		s.metrics.Fallbacks.WithLabelValues(string(llm.SiteVendorResponse)).Inc()
	}
	if st.QuotedPrice == nil {
		price := a.FirstOffer
		return VendorReply{
			Text:     fmt.Sprintf("Is trip ka %s lagega.", formatPrice(price)),
			NewPrice: &price,
			Intent:   IntentQuoting,
		}
	}
	return VendorReply{Text: fallbackAck, Intent: IntentGreeting}
}

func outcome(st State, elapsed int) Outcome {
	o := Outcome{
		QuoteObtained:     st.QuotedPrice != nil,
		FirstOffer:        st.QuotedPrice,
		NegotiationRounds: st.Round,
		CallDurationSec:   elapsed,
		// TODO: report vendor-initiated endings; the loop already sees IntentEndingCall.
		EndedBy:   SpeakerBot,
		EndReason: EndReasonNoQuote,
	}
	if st.CurrentOffer != nil {
		o.FinalPrice = st.CurrentOffer
	} else {
		o.FinalPrice = st.QuotedPrice
	}
	if o.QuoteObtained {
		o.EndReason = EndReasonNegotiationComplete
		o.PriceReductionPercent = persona.ReductionPercent(o.FirstOffer, o.FinalPrice)
		o.PriceReduced = *o.FinalPrice < *o.FirstOffer
	}
	return o
}

func callEval(o Outcome) CallEval {
	ev := CallEval{NaturalnessScore: naturalnessPlaceholder}
	if o.QuoteObtained {
		ev.QuoteObtained = 1
	}
	if o.PriceReduced {
		ev.NegotiationSuccess = 1
	}
	if o.PriceReductionPercent != nil {
		ev.PriceReductionPercent = *o.PriceReductionPercent
	}
	return ev
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.0f rupaye", p)
}
