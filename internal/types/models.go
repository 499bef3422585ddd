package types

import "time"

type CallStatus string

const (
	StatusCompleted CallStatus = "completed"
	StatusNoAnswer  CallStatus = "no_answer"
	StatusBusy      CallStatus = "busy"
	StatusRejected  CallStatus = "rejected"
	StatusFailed    CallStatus = "failed"
)

var AllStatuses = []CallStatus{StatusCompleted, StatusNoAnswer, StatusBusy, StatusRejected, StatusFailed}

// CallRecord is one historical (or synthetic) vendor call as read from the
// call-history store. Prices are nil when the call never produced them.
type CallRecord struct {
	CallID          string            `json:"call_id"`
	VendorName      string            `json:"vendor_name,omitempty"`
	VendorPhone     string            `json:"vendor_phone,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	DurationSec     int               `json:"duration_sec,omitempty"`
	Status          CallStatus        `json:"status"`
	Requirements    map[string]string `json:"requirements,omitempty"`
	QuotedPrice     *float64          `json:"quoted_price,omitempty"`
	NegotiatedPrice *float64          `json:"negotiated_price,omitempty"`
	Transcript      string            `json:"transcript,omitempty"`
	RecordingURL    string            `json:"recording_url,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
}

// HasQuote reports whether the vendor named a positive price.
func (c CallRecord) HasQuote() bool {
	return c.QuotedPrice != nil && *c.QuotedPrice > 0
}

// FinalPrice is the negotiated price when present, else the quote.
func (c CallRecord) FinalPrice() float64 {
	if c.NegotiatedPrice != nil && *c.NegotiatedPrice > 0 {
		return *c.NegotiatedPrice
	}
	if c.QuotedPrice != nil {
		return *c.QuotedPrice
	}
	return 0
}

// Negotiated reports whether the call closed at a positive price strictly
// below its quote. A zero or negative negotiated price counts as absent.
func (c CallRecord) Negotiated() bool {
	return c.HasQuote() && c.NegotiatedPrice != nil && *c.NegotiatedPrice > 0 && *c.NegotiatedPrice < *c.QuotedPrice
}

// Price is a small helper for building records with literal prices.
func Price(v float64) *float64 {
	return &v
}
