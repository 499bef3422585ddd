package simulator

import (
	"fmt"
	"strings"
	"time"

	"negotiation-eval-go/internal/types"
)

// CallRecord renders a simulated call in call-history form so synthetic
// batches can be scored by the same metrics as real calls. at is the call
// start time.
func (r SimulatedCallResult) CallRecord(at time.Time) types.CallRecord {
	var b strings.Builder
	for _, t := range r.Conversation {
		speaker := "Bot"
		if t.Speaker == SpeakerVendor {
			speaker = "Vendor"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, t.Text)
	}
	rec := types.CallRecord{
		CallID:      r.CallID,
		VendorName:  r.Persona.Name,
		Timestamp:   at.UTC(),
		DurationSec: r.Outcome.CallDurationSec,
		Status:      types.StatusCompleted,
		Requirements: map[string]string{
			"pickup":       r.Trip.Pickup,
			"drop":         r.Trip.Drop,
			"vehicle_type": r.Trip.VehicleType,
		},
		Transcript: strings.TrimSpace(b.String()),
		Notes:      "synthetic:" + r.Persona.ID,
	}
	if r.Outcome.FirstOffer != nil {
		rec.QuotedPrice = types.Price(*r.Outcome.FirstOffer)
	}
	if r.Outcome.FinalPrice != nil {
		rec.NegotiatedPrice = types.Price(*r.Outcome.FinalPrice)
	}
	return rec
}

// CallRecords converts a batch, spacing call starts by each call's duration.
func (b BatchResult) CallRecords(start time.Time) []types.CallRecord {
	out := make([]types.CallRecord, 0, len(b.Results))
	at := start
	for _, r := range b.Results {
		out = append(out, r.CallRecord(at))
		at = at.Add(time.Duration(r.Outcome.CallDurationSec) * time.Second)
	}
	return out
}
