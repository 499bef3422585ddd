package llm

import (
	"context"
	"fmt"
)

// MockClient returns deterministic canned answers for offline demos
// (USE_MOCK_LLM=true). Vendor responses are normally routed to the
// simulator's scripted vendor instead; the canned one here never quotes.
type MockClient struct {
	Answers map[Site]string
}

func NewMockClient() *MockClient {
	return &MockClient{Answers: map[Site]string{
		SitePersonaExtraction: `{
  "vendor_name": "Mock Travels",
  "negotiation_style": "flexible",
  "communication_style": "casual",
  "language_mix": "mixed",
  "first_offer": 3500,
  "final_price": 3000,
  "objections_used": ["fuel_cost", "toll_charges"],
  "deal_closing_behavior": "needs_convincing",
  "negotiation_rounds": 2,
  "sample_phrases": [
    {"category": "greeting", "phrase": "Haan ji, boliye"},
    {"category": "price_quote", "phrase": "3500 lagega sir"},
    {"category": "acceptance", "phrase": "Chaliye 3000 final"}
  ],
  "extraction_confidence": 70
}`,
		SiteTranscriptAnalysis: `{"bot_attempted_negotiation": true, "is_safe": true, "safety_issues": []}`,
		SiteVendorResponse:     `{"response": "Ji, bataiye aur kya details hain?", "new_price": null, "intent": "asking_details"}`,
	}}
}

func (m *MockClient) Complete(_ context.Context, req Request) (string, error) {
	if a, ok := m.Answers[req.Site]; ok {
		return a, nil
	}
	return "", fmt.Errorf("mock llm: no answer for site %s", req.Site)
}
