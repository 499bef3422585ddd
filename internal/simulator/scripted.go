package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/persona"
)

// ScriptedVendor is a deterministic stand-in for the completion service on
// the vendor_response site. It reads the anchors and state from the turn
// context and walks the price from the first offer down to the floor in
// steps sized by the persona's usual number of rounds.
type ScriptedVendor struct{}

var _ llm.Completer = ScriptedVendor{}

func (ScriptedVendor) Complete(_ context.Context, req llm.Request) (string, error) {
	if req.Site != llm.SiteVendorResponse {
		return "", fmt.Errorf("scripted vendor cannot answer site %s", req.Site)
	}
	var in vendorTurnInput
	if err := json.Unmarshal([]byte(req.Input), &in); err != nil {
		return "", fmt.Errorf("scripted vendor: decode context: %w", err)
	}
	out, err := json.Marshal(scriptedReply(in))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func scriptedReply(in vendorTurnInput) VendorReply {
	p := in.Persona
	st := in.State
	a := in.Pricing

	if st.QuotedPrice == nil {
		price := a.FirstOffer
		return VendorReply{Text: phrase(p.ResponsePatterns.PriceQuote, price, "Is trip ka {price} lagega."), NewPrice: &price, Intent: IntentQuoting}
	}

	// aggressive vendors push back once before moving
	if p.NegotiationStyle == persona.StyleAggressive && st.Round == 0 && len(st.ObjectionsUsed) == 0 {
		obj := persona.ObjVehicleDemand
		if len(p.CommonObjections) > 0 {
			obj = p.CommonObjections[0]
		}
		return VendorReply{Text: phrase(p.ResponsePatterns.Rejection, 0, "Itne mein nahi hoga."), Intent: IntentObjecting, Objection: obj}
	}

	current := *st.QuotedPrice
	if st.CurrentOffer != nil {
		current = *st.CurrentOffer
	}
	rounds := p.AverageRounds
	if rounds < 1 {
		rounds = 1
	}
	step := roundTo50((a.FirstOffer - a.MinimumPrice) / float64(rounds))
	if step < 50 {
		step = 50
	}
	next := current - step
	if next <= a.MinimumPrice || st.Round+1 >= rounds {
		price := a.MinimumPrice
		if current < price {
			price = current
		}
		return VendorReply{Text: phrase(p.ResponsePatterns.Acceptance, price, "Theek hai, {price} final."), NewPrice: &price, Intent: IntentAccepting}
	}
	return VendorReply{Text: phrase(p.ResponsePatterns.Rejection, next, "Chaliye {price} kar dete hain."), NewPrice: &next, Intent: IntentCounterOffering}
}

func phrase(options []string, price float64, def string) string {
	text := def
	if len(options) > 0 {
		text = options[0]
	}
	if price > 0 {
		text = strings.ReplaceAll(text, "{price}", fmt.Sprintf("%.0f", price))
	}
	return text
}
