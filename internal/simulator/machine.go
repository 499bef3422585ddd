package simulator

import "negotiation-eval-go/internal/persona"

// MaxNegotiationRounds is the last round allowed to continue; the call is
// cut once the counter goes past it.
const MaxNegotiationRounds = 5

type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseNegotiating Phase = "negotiating"
	PhaseTerminated  Phase = "terminated"
)

type TerminationReason string

const (
	TerminationNone          TerminationReason = ""
	TerminationVendorEnded   TerminationReason = "vendor_ended_call"
	TerminationAccepted      TerminationReason = "vendor_accepted"
	TerminationRoundCap      TerminationReason = "round_cap"
	TerminationScriptExhaust TerminationReason = "script_exhausted"
)

// State is the mutable negotiation state of one simulated call.
type State struct {
	Phase          Phase                   `json:"phase"`
	QuotedPrice    *float64                `json:"quoted_price"`
	CurrentOffer   *float64                `json:"current_offer"`
	Round          int                     `json:"negotiation_round"`
	ObjectionsUsed []persona.ObjectionType `json:"objections_used"`
	Mood           Mood                    `json:"mood"`
	Termination    TerminationReason       `json:"termination,omitempty"`
}

// NewState is the state before the first vendor turn.
func NewState() State {
	return State{Phase: PhaseNotStarted, Mood: MoodNeutral}
}

// VendorReply is one vendor turn as returned by the completion service (or
// the fallback).
type VendorReply struct {
	Text      string                `json:"response"`
	NewPrice  *float64              `json:"new_price"`
	Intent    Intent                `json:"intent"`
	Objection persona.ObjectionType `json:"objection,omitempty"`
}

// Apply is the transition function: it returns the state after reply
// without touching s. The first price ever spoken becomes the quote; every
// later price is a counter offer and advances the round.
func Apply(s State, reply VendorReply, style persona.NegotiationStyle) State {
	next := s
	next.ObjectionsUsed = append([]persona.ObjectionType(nil), s.ObjectionsUsed...)
	if next.Phase == PhaseNotStarted {
		next.Phase = PhaseNegotiating
	}

	if reply.NewPrice != nil {
		price := *reply.NewPrice
		if next.QuotedPrice == nil {
			next.QuotedPrice = &price
		} else {
			next.CurrentOffer = &price
			next.Round++
		}
	}

	if reply.Objection != "" && reply.Objection.Valid() && !hasObjection(next.ObjectionsUsed, reply.Objection) {
		next.ObjectionsUsed = append(next.ObjectionsUsed, reply.Objection)
	}

	next.Mood = NextMood(s.Mood, reply.Intent, style)

	if done, reason := ShouldTerminate(next, reply.Intent); done {
		next.Phase = PhaseTerminated
		next.Termination = reason
	}
	return next
}

// NextMood is the mood table: rejection sours, acceptance pleases, an
// objection frustrates aggressive vendors and sours everyone else.
func NextMood(current Mood, intent Intent, style persona.NegotiationStyle) Mood {
	switch intent {
	case IntentRejectingOffer:
		return MoodNegative
	case IntentAccepting:
		return MoodPositive
	case IntentObjecting:
		if style == persona.StyleAggressive {
			return MoodFrustrated
		}
		return MoodNegative
	}
	return current
}

// ShouldTerminate reports whether the call stops after a turn with intent.
func ShouldTerminate(s State, intent Intent) (bool, TerminationReason) {
	switch {
	case intent == IntentEndingCall:
		return true, TerminationVendorEnded
	case intent == IntentAccepting:
		return true, TerminationAccepted
	case s.Round > MaxNegotiationRounds:
		return true, TerminationRoundCap
	}
	return false, TerminationNone
}

// Finish closes a call whose script ran out before a terminal intent.
func Finish(s State) State {
	if s.Phase == PhaseTerminated {
		return s
	}
	s.Phase = PhaseTerminated
	s.Termination = TerminationScriptExhaust
	return s
}

func hasObjection(list []persona.ObjectionType, o persona.ObjectionType) bool {
	for _, v := range list {
		if v == o {
			return true
		}
	}
	return false
}
