package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/telemetry"
)

func templates(t *testing.T) *persona.Templates {
	t.Helper()
	tpl, err := persona.DefaultTemplates()
	require.NoError(t, err)
	return tpl
}

func vendor(t *testing.T, id string) VendorContext {
	t.Helper()
	p, ok := templates(t).ByID(id)
	require.True(t, ok)
	return VendorContext{Persona: p, Trip: DefaultTrip, Market: DefaultMarket, State: NewState()}
}

func newSim(c llm.Completer) *Simulator {
	return New(c, logger.Discard(), telemetry.NewMetrics())
}

func failing() llm.Completer {
	return llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("service unavailable")
	})
}

func price(v float64) *float64 { return &v }

func TestPricing(t *testing.T) {
	tests := []struct {
		id           string
		first, floor float64
	}{
		{"firm_fleet_owner", 3500, 3350},   // 3520 -> 3500, 3325 -> 3350
		{"flexible_driver", 3700, 3150},    // 3680 -> 3700, 3145 -> 3150
		{"anchor_high_agency", 4500, 3400}, // 4480 -> 4500, 3375 -> 3400
	}
	tpl := templates(t)
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, _ := tpl.ByID(tt.id)
			a := Pricing(p, DefaultMarket)
			assert.Equal(t, tt.first, a.FirstOffer)
			assert.Equal(t, tt.floor, a.MinimumPrice)
		})
	}
}

func TestRunAlwaysFailingServiceFallsBack(t *testing.T) {
	vc := vendor(t, "firm_fleet_owner")
	script := DefaultBotScript()

	res, err := newSim(failing()).Run(context.Background(), vc, script)
	require.NoError(t, err)

	require.Len(t, res.Conversation, 2*len(script))
	first := res.Conversation[1]
	assert.Equal(t, SpeakerVendor, first.Speaker)
	assert.Equal(t, IntentQuoting, first.Intent)
	for _, turn := range res.Conversation[3:] {
		if turn.Speaker == SpeakerVendor {
			assert.Equal(t, IntentGreeting, turn.Intent)
		}
	}

	o := res.Outcome
	assert.True(t, o.QuoteObtained)
	require.NotNil(t, o.FirstOffer)
	assert.Equal(t, 3500.0, *o.FirstOffer)
	require.NotNil(t, o.FinalPrice)
	assert.Equal(t, 3500.0, *o.FinalPrice)
	assert.False(t, o.PriceReduced)
	assert.Nil(t, o.PriceReductionPercent)
	assert.Equal(t, 0, o.NegotiationRounds)
	assert.Equal(t, 7*len(script), o.CallDurationSec)
	assert.Equal(t, SpeakerBot, o.EndedBy)
	assert.Equal(t, EndReasonNegotiationComplete, o.EndReason)
	assert.Equal(t, TerminationScriptExhaust, res.Termination)
	assert.Equal(t, CallEval{QuoteObtained: 1, NaturalnessScore: naturalnessPlaceholder}, res.EvalMetrics)
}

func TestRunTimestamps(t *testing.T) {
	res, err := newSim(failing()).Run(context.Background(), vendor(t, "firm_fleet_owner"), []string{"a", "b"})
	require.NoError(t, err)
	var got []int
	for _, turn := range res.Conversation {
		got = append(got, turn.Timestamp)
	}
	assert.Equal(t, []int{3, 7, 10, 14}, got)
}

func TestRunRoundCap(t *testing.T) {
	n := 0
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		n++
		return fmt.Sprintf(`{"response":"%d de do","new_price":%d,"intent":"counter_offering"}`, 5000-n*10, 5000-n*10), nil
	})
	script := make([]string, 12)
	for i := range script {
		script[i] = "kam karo"
	}

	res, err := newSim(c).Run(context.Background(), vendor(t, "anchor_high_agency"), script)
	require.NoError(t, err)

	assert.Equal(t, MaxNegotiationRounds+1, res.Outcome.NegotiationRounds)
	assert.Equal(t, TerminationRoundCap, res.Termination)
	assert.Len(t, res.Conversation, 2*7)
	assert.Equal(t, 4990.0, *res.Outcome.FirstOffer)
	assert.Equal(t, 4930.0, *res.Outcome.FinalPrice)
	assert.True(t, res.Outcome.PriceReduced)
	assert.Equal(t, 1, *res.Outcome.PriceReductionPercent)
}

func TestRunStopsOnAcceptOrEnd(t *testing.T) {
	for _, intent := range []Intent{IntentAccepting, IntentEndingCall} {
		t.Run(string(intent), func(t *testing.T) {
			turn := 0
			c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
				turn++
				if turn == 1 {
					return `{"response":"3500 lagega","new_price":3500,"intent":"quoting"}`, nil
				}
				return fmt.Sprintf(`{"response":"ok","new_price":3400,"intent":%q}`, intent), nil
			})
			res, err := newSim(c).Run(context.Background(), vendor(t, "firm_fleet_owner"), DefaultBotScript())
			require.NoError(t, err)
			assert.Len(t, res.Conversation, 4)
			assert.Equal(t, 3400.0, *res.Outcome.FinalPrice)
			assert.Equal(t, 1, res.Outcome.NegotiationRounds)
			assert.Equal(t, 3, *res.Outcome.PriceReductionPercent)
		})
	}
}

func TestRunNoQuote(t *testing.T) {
	c := llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return `{"response":"Abhi gaadi free nahi hai","intent":"ending_call"}`, nil
	})
	res, err := newSim(c).Run(context.Background(), vendor(t, "friendly_local"), DefaultBotScript())
	require.NoError(t, err)
	assert.False(t, res.Outcome.QuoteObtained)
	assert.Nil(t, res.Outcome.FinalPrice)
	assert.Equal(t, EndReasonNoQuote, res.Outcome.EndReason)
	assert.Equal(t, CallEval{NaturalnessScore: naturalnessPlaceholder}, res.EvalMetrics)
}

func TestRunSendsAnchorsAndHistory(t *testing.T) {
	var inputs []vendorTurnInput
	c := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		var in vendorTurnInput
		require.NoError(t, json.Unmarshal([]byte(req.Input), &in))
		inputs = append(inputs, in)
		return ScriptedVendor{}.Complete(context.Background(), req)
	})
	_, err := newSim(c).Run(context.Background(), vendor(t, "flexible_driver"), DefaultBotScript())
	require.NoError(t, err)

	require.NotEmpty(t, inputs)
	assert.Equal(t, Anchors{FirstOffer: 3700, MinimumPrice: 3150}, inputs[0].Pricing)
	assert.Len(t, inputs[0].Conversation, 1)
	assert.Len(t, inputs[1].Conversation, 3)
	require.NotNil(t, inputs[1].State.QuotedPrice)
	assert.Equal(t, 3700.0, *inputs[1].State.QuotedPrice)
}

func TestRunInvalidInput(t *testing.T) {
	s := newSim(failing())
	_, err := s.Run(context.Background(), vendor(t, "firm_fleet_owner"), nil)
	assert.Error(t, err)

	vc := vendor(t, "firm_fleet_owner")
	vc.Market = MarketPrice{}
	_, err = s.Run(context.Background(), vc, DefaultBotScript())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx, vendor(t, "firm_fleet_owner"), DefaultBotScript())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitize(t *testing.T) {
	a := Anchors{FirstOffer: 4000, MinimumPrice: 3000}
	quoted := State{QuotedPrice: price(4000)}

	r := sanitize(VendorReply{Text: " ok ", NewPrice: price(2500), Intent: "COUNTER_OFFERING"}, quoted, a)
	assert.Equal(t, "ok", r.Text)
	assert.Equal(t, 3000.0, *r.NewPrice)
	assert.Equal(t, IntentCounterOffering, r.Intent)

	r = sanitize(VendorReply{Text: "x", NewPrice: price(0), Intent: "haggling"}, quoted, a)
	assert.Nil(t, r.NewPrice)
	assert.Equal(t, IntentAskingDetails, r.Intent)

	r = sanitize(VendorReply{Text: "x", NewPrice: price(4000), Intent: "?"}, NewState(), a)
	assert.Equal(t, IntentQuoting, r.Intent)

	r = sanitize(VendorReply{Text: "x", NewPrice: price(3500), Intent: "?", Objection: "weather"}, quoted, a)
	assert.Equal(t, IntentCounterOffering, r.Intent)
	assert.Empty(t, r.Objection)
}

func TestScriptedVendorNegotiatesToFloor(t *testing.T) {
	res, err := newSim(ScriptedVendor{}).Run(context.Background(), vendor(t, "flexible_driver"), DefaultBotScript())
	require.NoError(t, err)

	o := res.Outcome
	assert.Equal(t, 3700.0, *o.FirstOffer)
	assert.Equal(t, 3150.0, *o.FinalPrice)
	assert.Equal(t, 15, *o.PriceReductionPercent)
	assert.Equal(t, 2, o.NegotiationRounds)
	assert.Equal(t, TerminationAccepted, res.Termination)
	assert.Equal(t, 1, res.EvalMetrics.NegotiationSuccess)
}

func TestScriptedVendorAggressiveObjectsFirst(t *testing.T) {
	res, err := newSim(ScriptedVendor{}).Run(context.Background(), vendor(t, "aggressive_broker"), DefaultBotScript())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Conversation), 4)
	assert.Equal(t, IntentObjecting, res.Conversation[3].Intent)
	assert.True(t, res.Outcome.QuoteObtained)
}

func TestScriptedVendorRejectsOtherSites(t *testing.T) {
	_, err := ScriptedVendor{}.Complete(context.Background(), llm.Request{Site: llm.SiteTranscriptAnalysis})
	assert.Error(t, err)
	_, err = ScriptedVendor{}.Complete(context.Background(), llm.Request{Site: llm.SiteVendorResponse, Input: "not json"})
	assert.Error(t, err)
}

func TestFallbackQuoteMentionsPrice(t *testing.T) {
	s := newSim(failing())
	r := s.fallback(NewState(), Anchors{FirstOffer: 3500}, s.log, errors.New("x"))
	assert.True(t, strings.Contains(r.Text, "3500"))
}
