package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/types"
)

const (
	minUsableTranscript = 50
	maxExamples         = 3
	topVendors          = 5
)

type DatasetSummary struct {
	TotalCalls         int                      `json:"total_calls"`
	ByStatus           map[types.CallStatus]int `json:"by_status"`
	WithQuote          int                      `json:"with_quote"`
	WithTranscript     int                      `json:"with_transcript"`
	From               time.Time                `json:"from"`
	To                 time.Time                `json:"to"`
	TopVendors         []string                 `json:"top_vendors"`
	ExampleTranscripts []string                 `json:"example_transcripts"`
}

// Summarize gives a compact overview of a call set: status mix, how many
// calls are usable for metrics and extraction, the covered time range and
// the most-called vendors.
func Summarize(calls []types.CallRecord) DatasetSummary {
	ds := DatasetSummary{
		TotalCalls:         len(calls),
		ByStatus:           map[types.CallStatus]int{},
		TopVendors:         []string{},
		ExampleTranscripts: []string{},
	}
	byVendor := map[string]int{}
	for _, c := range calls {
		ds.ByStatus[c.Status]++
		if c.HasQuote() {
			ds.WithQuote++
		}
		if t := strings.TrimSpace(c.Transcript); len(t) >= minUsableTranscript {
			ds.WithTranscript++
			if len(ds.ExampleTranscripts) < maxExamples {
				ds.ExampleTranscripts = append(ds.ExampleTranscripts, t)
			}
		}
		if !c.Timestamp.IsZero() {
			if ds.From.IsZero() || c.Timestamp.Before(ds.From) {
				ds.From = c.Timestamp
			}
			if c.Timestamp.After(ds.To) {
				ds.To = c.Timestamp
			}
		}
		if name := strings.TrimSpace(c.VendorName); name != "" {
			byVendor[name]++
		}
	}

	type vc struct {
		name  string
		count int
	}
	var arr []vc
	for k, v := range byVendor {
		arr = append(arr, vc{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].count != arr[j].count {
			return arr[i].count > arr[j].count
		}
		return arr[i].name < arr[j].name
	})
	for i := 0; i < len(arr) && i < topVendors; i++ {
		ds.TopVendors = append(ds.TopVendors, arr[i].name)
	}
	return ds
}

// LoadAndSummarize reads the dataset and logs its summary.
func LoadAndSummarize(path string, log *logger.Logger) ([]types.CallRecord, DatasetSummary, error) {
	l := log.Component("dataset").WithField("path", path)
	l.Info("loading dataset")
	calls, err := Load(path)
	if err != nil {
		l.WithError(err).Error("load failed")
		return nil, DatasetSummary{}, fmt.Errorf("load %s: %w", path, err)
	}
	ds := Summarize(calls)
	l.WithFields(logrus.Fields{
		"total_calls":     ds.TotalCalls,
		"with_quote":      ds.WithQuote,
		"with_transcript": ds.WithTranscript,
		"vendors":         len(ds.TopVendors),
	}).Info("dataset loaded")
	for i, ex := range ds.ExampleTranscripts {
		l.WithField("example_index", i).Debug(ex)
	}
	return calls, ds, nil
}
