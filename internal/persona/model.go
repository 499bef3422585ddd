// Package persona holds the vendor negotiation persona model: the fixed
// trait vocabularies, persona records, extraction results and the baseline
// templates the rest of the pipeline starts from.
package persona

import (
	"math"
	"time"
)

type NegotiationStyle string

const (
	StyleFirm         NegotiationStyle = "firm"
	StyleFlexible     NegotiationStyle = "flexible"
	StyleAnchorHigh   NegotiationStyle = "anchor_high"
	StyleAggressive   NegotiationStyle = "aggressive"
	StyleFriendly     NegotiationStyle = "friendly"
	StyleProfessional NegotiationStyle = "professional"
)

// AllNegotiationStyles is also the bucket order used by clustering.
var AllNegotiationStyles = []NegotiationStyle{
	StyleFirm, StyleFlexible, StyleAnchorHigh, StyleAggressive, StyleFriendly, StyleProfessional,
}

func (s NegotiationStyle) Valid() bool { return contains(AllNegotiationStyles, s) }

type CommunicationStyle string

const (
	CommTerse     CommunicationStyle = "terse"
	CommChatty    CommunicationStyle = "chatty"
	CommFormal    CommunicationStyle = "formal"
	CommCasual    CommunicationStyle = "casual"
	CommImpatient CommunicationStyle = "impatient"
)

var AllCommunicationStyles = []CommunicationStyle{CommTerse, CommChatty, CommFormal, CommCasual, CommImpatient}

func (s CommunicationStyle) Valid() bool { return contains(AllCommunicationStyles, s) }

// LanguageMix describes which of the deployment's two languages a vendor
// speaks. For the default deployment primary is Hindi and secondary English.
type LanguageMix string

const (
	LangPurePrimary   LanguageMix = "pure_primary"
	LangPureSecondary LanguageMix = "pure_secondary"
	LangMixed         LanguageMix = "mixed"
	LangRegionalMix   LanguageMix = "regional_mix"
)

var AllLanguageMixes = []LanguageMix{LangPurePrimary, LangPureSecondary, LangMixed, LangRegionalMix}

func (l LanguageMix) Valid() bool { return contains(AllLanguageMixes, l) }

type ObjectionType string

const (
	ObjFuelCost        ObjectionType = "fuel_cost"
	ObjTollCharges     ObjectionType = "toll_charges"
	ObjNightCharges    ObjectionType = "night_charges"
	ObjReturnEmpty     ObjectionType = "return_empty"
	ObjDriverAllowance ObjectionType = "driver_allowance"
	ObjPeakSeason      ObjectionType = "peak_season"
	ObjVehicleDemand   ObjectionType = "vehicle_demand"
	ObjDistance        ObjectionType = "distance"
	ObjWaitingCharges  ObjectionType = "waiting_charges"
	ObjCompetitorPrice ObjectionType = "competitor_price"
)

var AllObjectionTypes = []ObjectionType{
	ObjFuelCost, ObjTollCharges, ObjNightCharges, ObjReturnEmpty, ObjDriverAllowance,
	ObjPeakSeason, ObjVehicleDemand, ObjDistance, ObjWaitingCharges, ObjCompetitorPrice,
}

func (o ObjectionType) Valid() bool { return contains(AllObjectionTypes, o) }

type ObjectionFrequency string

const (
	FrequencyLow    ObjectionFrequency = "low"
	FrequencyMedium ObjectionFrequency = "medium"
	FrequencyHigh   ObjectionFrequency = "high"
)

type DealClosingBehavior string

const (
	ClosingAcceptsQuickly    DealClosingBehavior = "accepts_quickly"
	ClosingNeedsConvincing   DealClosingBehavior = "needs_convincing"
	ClosingFinalOffer        DealClosingBehavior = "final_offer"
	ClosingAsksCallback      DealClosingBehavior = "asks_callback"
	ClosingOffersAlternative DealClosingBehavior = "offers_alternative"
)

var AllClosingBehaviors = []DealClosingBehavior{
	ClosingAcceptsQuickly, ClosingNeedsConvincing, ClosingFinalOffer, ClosingAsksCallback, ClosingOffersAlternative,
}

func (d DealClosingBehavior) Valid() bool { return contains(AllClosingBehaviors, d) }

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type PhraseCategory string

const (
	PhraseGreeting   PhraseCategory = "greeting"
	PhrasePriceQuote PhraseCategory = "price_quote"
	PhraseRejection  PhraseCategory = "rejection"
	PhraseAcceptance PhraseCategory = "acceptance"
	PhraseFarewell   PhraseCategory = "farewell"
)

var AllPhraseCategories = []PhraseCategory{PhraseGreeting, PhrasePriceQuote, PhraseRejection, PhraseAcceptance, PhraseFarewell}

func (p PhraseCategory) Valid() bool { return contains(AllPhraseCategories, p) }

const (
	MaxPhrasesPerCategory = 3
	MaxRefinedObjections  = 4
)

// ResponsePatterns are example utterances per conversational moment.
type ResponsePatterns struct {
	Greeting   []string `json:"greeting" yaml:"greeting"`
	PriceQuote []string `json:"price_quote" yaml:"price_quote"`
	Rejection  []string `json:"rejection" yaml:"rejection"`
	Acceptance []string `json:"acceptance" yaml:"acceptance"`
	Farewell   []string `json:"farewell" yaml:"farewell"`
}

func (r *ResponsePatterns) slot(c PhraseCategory) *[]string {
	switch c {
	case PhraseGreeting:
		return &r.Greeting
	case PhrasePriceQuote:
		return &r.PriceQuote
	case PhraseRejection:
		return &r.Rejection
	case PhraseAcceptance:
		return &r.Acceptance
	case PhraseFarewell:
		return &r.Farewell
	}
	return nil
}

// Get returns the phrases for c, or nil for an unknown category.
func (r ResponsePatterns) Get(c PhraseCategory) []string {
	if s := r.slot(c); s != nil {
		return *s
	}
	return nil
}

// Set replaces the phrases for c, keeping at most MaxPhrasesPerCategory.
func (r *ResponsePatterns) Set(c PhraseCategory, phrases []string) {
	s := r.slot(c)
	if s == nil {
		return
	}
	if len(phrases) > MaxPhrasesPerCategory {
		phrases = phrases[:MaxPhrasesPerCategory]
	}
	*s = append([]string(nil), phrases...)
}

// VendorPersona is treated as immutable once built; reclustering produces
// new values instead of editing existing ones.
type VendorPersona struct {
	ID                        string              `json:"id" yaml:"id"`
	Name                      string              `json:"name" yaml:"name"`
	Description               string              `json:"description" yaml:"description"`
	NegotiationStyle          NegotiationStyle    `json:"negotiation_style" yaml:"negotiation_style"`
	CommunicationStyle        CommunicationStyle  `json:"communication_style" yaml:"communication_style"`
	LanguageMix               LanguageMix         `json:"language_mix" yaml:"language_mix"`
	PriceFlexibility          int                 `json:"price_flexibility" yaml:"price_flexibility"`
	TypicalFirstOfferMarkup   int                 `json:"typical_first_offer_markup" yaml:"typical_first_offer_markup"`
	MinimumAcceptableDiscount int                 `json:"minimum_acceptable_discount" yaml:"minimum_acceptable_discount"`
	CommonObjections          []ObjectionType     `json:"common_objections" yaml:"common_objections"`
	ObjectionFrequency        ObjectionFrequency  `json:"objection_frequency" yaml:"objection_frequency"`
	DealClosingBehavior       DealClosingBehavior `json:"deal_closing_behavior" yaml:"deal_closing_behavior"`
	AverageRoundsToClose      int                 `json:"average_rounds_to_close" yaml:"average_rounds_to_close"`
	ResponsePatterns          ResponsePatterns    `json:"response_patterns" yaml:"response_patterns"`
	SourceCallIDs             []string            `json:"source_call_ids" yaml:"source_call_ids"`
	Confidence                Confidence          `json:"confidence" yaml:"confidence"`
	CreatedAt                 time.Time           `json:"created_at" yaml:"-"`
}

// Clone returns a deep copy so the template data behind p is never shared.
func (p VendorPersona) Clone() VendorPersona {
	out := p
	out.CommonObjections = append([]ObjectionType(nil), p.CommonObjections...)
	out.SourceCallIDs = append([]string(nil), p.SourceCallIDs...)
	for _, c := range AllPhraseCategories {
		out.ResponsePatterns.Set(c, p.ResponsePatterns.Get(c))
	}
	return out
}

// SamplePhrase is one categorized utterance lifted from a transcript.
type SamplePhrase struct {
	Category PhraseCategory `json:"category"`
	Phrase   string         `json:"phrase"`
}

// PersonaExtractionResult is what one transcript tells us about its vendor.
type PersonaExtractionResult struct {
	CallID                string              `json:"call_id"`
	VendorName            string              `json:"vendor_name"`
	NegotiationStyle      NegotiationStyle    `json:"negotiation_style"`
	CommunicationStyle    CommunicationStyle  `json:"communication_style"`
	LanguageMix           LanguageMix         `json:"language_mix"`
	FirstOffer            *float64            `json:"first_offer"`
	FinalPrice            *float64            `json:"final_price"`
	PriceReductionPercent *int                `json:"price_reduction_percent"`
	ObjectionsUsed        []ObjectionType     `json:"objections_used"`
	DealClosingBehavior   DealClosingBehavior `json:"deal_closing_behavior"`
	NegotiationRounds     int                 `json:"negotiation_rounds"`
	SamplePhrases         []SamplePhrase      `json:"sample_phrases"`
	ExtractionConfidence  int                 `json:"extraction_confidence"`
}

// ReductionPercent is round((first-final)/first*100) when final is strictly
// below a positive first offer, and nil otherwise.
func ReductionPercent(first, final *float64) *int {
	if first == nil || final == nil || *first <= 0 || *final >= *first {
		return nil
	}
	v := int(math.Round((*first - *final) / *first * 100))
	return &v
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
