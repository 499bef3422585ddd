// Package simulator runs synthetic multi-turn price negotiations between the
// bot's script and a persona-driven vendor.
package simulator

import (
	"math"

	"negotiation-eval-go/internal/persona"
)

type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentQuoting         Intent = "quoting"
	IntentRejectingOffer  Intent = "rejecting_offer"
	IntentCounterOffering Intent = "counter_offering"
	IntentAccepting       Intent = "accepting"
	IntentObjecting       Intent = "objecting"
	IntentEndingCall      Intent = "ending_call"
	IntentAskingDetails   Intent = "asking_details"
)

var AllIntents = []Intent{
	IntentGreeting, IntentQuoting, IntentRejectingOffer, IntentCounterOffering,
	IntentAccepting, IntentObjecting, IntentEndingCall, IntentAskingDetails,
}

func (i Intent) Valid() bool {
	for _, v := range AllIntents {
		if v == i {
			return true
		}
	}
	return false
}

type Mood string

const (
	MoodNeutral    Mood = "neutral"
	MoodPositive   Mood = "positive"
	MoodNegative   Mood = "negative"
	MoodFrustrated Mood = "frustrated"
)

type Speaker string

const (
	SpeakerBot    Speaker = "bot"
	SpeakerVendor Speaker = "vendor"
)

// TripDetails is what the bot is asking the vendor to price.
type TripDetails struct {
	Pickup      string `json:"pickup"`
	Drop        string `json:"drop"`
	Date        string `json:"date"`
	VehicleType string `json:"vehicle_type"`
	Passengers  int    `json:"passengers"`
	TripType    string `json:"trip_type"` // one_way | round_trip
}

// MarketPrice is the fair-price band for the trip.
type MarketPrice struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Anchors are the persona's pricing bounds for one call.
type Anchors struct {
	FirstOffer   float64 `json:"first_offer_price"`
	MinimumPrice float64 `json:"minimum_price"`
}

// Pricing derives the anchors from persona markup and floor discount,
// both rounded to the nearest 50.
func Pricing(p persona.VendorPersona, m MarketPrice) Anchors {
	first := roundTo50(m.Mid * (1 + float64(p.TypicalFirstOfferMarkup)/100))
	return Anchors{
		FirstOffer:   first,
		MinimumPrice: roundTo50(first * (1 - float64(p.MinimumAcceptableDiscount)/100)),
	}
}

func roundTo50(v float64) float64 {
	return math.Round(v/50) * 50
}

// VendorContext is the per-call simulation input. State starts zero-valued
// and is advanced only through Apply.
type VendorContext struct {
	Persona persona.VendorPersona `json:"persona"`
	Trip    TripDetails           `json:"trip"`
	Market  MarketPrice           `json:"market"`
	State   State                 `json:"state"`
}

type ConversationTurn struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Intent    Intent  `json:"intent,omitempty"`
	Timestamp int     `json:"timestamp"` // seconds since call start
}

type Outcome struct {
	QuoteObtained         bool     `json:"quote_obtained"`
	FirstOffer            *float64 `json:"first_offer"`
	FinalPrice            *float64 `json:"final_price"`
	PriceReduced          bool     `json:"price_reduced"`
	PriceReductionPercent *int     `json:"price_reduction_percent"`
	NegotiationRounds     int      `json:"negotiation_rounds"`
	CallDurationSec       int      `json:"call_duration_sec"`
	EndedBy               Speaker  `json:"ended_by"`
	EndReason             string   `json:"end_reason"`
}

type CallEval struct {
	QuoteObtained         int     `json:"quote_obtained"`
	NegotiationSuccess    int     `json:"negotiation_success"`
	PriceReductionPercent int     `json:"price_reduction_percent"`
	NaturalnessScore      float64 `json:"naturalness_score"`
}

type SimulatedCallResult struct {
	CallID       string                `json:"call_id"`
	Persona      persona.VendorPersona `json:"persona"`
	Trip         TripDetails           `json:"trip"`
	Anchors      Anchors               `json:"anchors"`
	Conversation []ConversationTurn    `json:"conversation"`
	Outcome      Outcome               `json:"outcome"`
	EvalMetrics  CallEval              `json:"eval_metrics"`
	Termination  TerminationReason     `json:"termination"`
}

const (
	EndReasonNegotiationComplete = "negotiation_complete"
	EndReasonNoQuote             = "no_quote_obtained"

	// naturalnessPlaceholder stands in until generated speech is scored.
	naturalnessPlaceholder = 0.7
)
