package evalmetrics

import (
	"fmt"
	"sort"
	"time"

	"negotiation-eval-go/internal/types"
)

type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Day, Week, Month:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
}

type PeriodMetrics struct {
	Period  string      `json:"period"`
	Metrics EvalMetrics `json:"metrics"`
}

// PeriodKey buckets t (in UTC). Weeks start on Sunday and are numbered
// from the week holding January 1st, which is not ISO-8601.
func PeriodKey(t time.Time, p Period) string {
	t = t.UTC()
	switch p {
	case Week:
		jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		offset := int(jan1.Weekday())
		week := (t.YearDay() + offset + 6) / 7
		return fmt.Sprintf("%d-W%02d", t.Year(), week)
	case Month:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// GroupByPeriod computes basic metrics per bucket, sorted by bucket key.
// Transcript analysis is never run per period.
func GroupByPeriod(calls []types.CallRecord, p Period) []PeriodMetrics {
	buckets := map[string][]types.CallRecord{}
	for _, c := range calls {
		k := PeriodKey(c.Timestamp, p)
		buckets[k] = append(buckets[k], c)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PeriodMetrics, 0, len(keys))
	for _, k := range keys {
		out = append(out, PeriodMetrics{Period: k, Metrics: CalculateBasic(buckets[k])})
	}
	return out
}
