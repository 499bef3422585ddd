// Package dataset reads call records from spreadsheet or JSON exports and
// writes eval runs back out as workbooks.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"negotiation-eval-go/internal/types"
)

// Load dispatches on the file extension: .xlsx or .json.
func Load(path string) ([]types.CallRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path)
	case ".json":
		return LoadJSON(path)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
}

// LoadJSON reads a JSON array of call records.
func LoadJSON(path string) ([]types.CallRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var out []types.CallRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode call records: %w", err)
	}
	return out, nil
}

// columns holds the detected index of each known header, -1 when absent.
type columns struct {
	id, vendor, phone, timestamp, duration, status         int
	quoted, negotiated, transcript, recording, notes, sess int
}

// detectColumns maps headers by substring heuristics. First match wins.
func detectColumns(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(dst *int, i int) {
		if *dst == -1 {
			*dst = i
		}
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "transcript") || l == "text":
			set(&c.transcript, i)
		case strings.Contains(l, "record") || strings.Contains(l, "audio") || strings.Contains(l, "url"):
			set(&c.recording, i)
		case strings.Contains(l, "quote"):
			set(&c.quoted, i)
		case strings.Contains(l, "negotiat") || strings.Contains(l, "final"):
			set(&c.negotiated, i)
		case strings.Contains(l, "phone") || strings.Contains(l, "mobile"):
			set(&c.phone, i)
		case strings.Contains(l, "vendor") || strings.Contains(l, "name"):
			set(&c.vendor, i)
		case strings.Contains(l, "session"):
			set(&c.sess, i)
		case strings.Contains(l, "duration"):
			set(&c.duration, i)
		case strings.Contains(l, "status") || strings.Contains(l, "outcome"):
			set(&c.status, i)
		case strings.Contains(l, "time") || strings.Contains(l, "date"):
			set(&c.timestamp, i)
		case strings.Contains(l, "note"):
			set(&c.notes, i)
		case strings.Contains(l, "id"):
			set(&c.id, i)
		}
	}
	return c
}

// LoadXLSX reads call records from the first sheet. Rows without a call id
// get a positional one; rows with nothing but blanks are skipped.
func LoadXLSX(path string) ([]types.CallRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}
	col := detectColumns(rows[0])

	var out []types.CallRecord
	for i, r := range rows[1:] {
		cell := func(idx int) string {
			if idx >= 0 && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}
		if strings.TrimSpace(strings.Join(r, "")) == "" {
			continue
		}
		rec := types.CallRecord{
			CallID:          cell(col.id),
			VendorName:      cell(col.vendor),
			VendorPhone:     cell(col.phone),
			Status:          ParseStatus(cell(col.status)),
			QuotedPrice:     ParsePrice(cell(col.quoted)),
			NegotiatedPrice: ParsePrice(cell(col.negotiated)),
			Transcript:      cell(col.transcript),
			RecordingURL:    cell(col.recording),
			Notes:           cell(col.notes),
			SessionID:       cell(col.sess),
		}
		if rec.CallID == "" {
			rec.CallID = fmt.Sprintf("row-%d", i+2)
		}
		rec.DurationSec, _ = strconv.Atoi(cell(col.duration))
		rec.Timestamp, _ = ParseTimestamp(cell(col.timestamp))
		out = append(out, rec)
	}
	return out, nil
}

// ParseStatus maps free-form outcome text onto the status vocabulary.
// Unrecognised text becomes failed.
func ParseStatus(s string) types.CallStatus {
	l := strings.ToLower(strings.TrimSpace(s))
	l = strings.NewReplacer(" ", "_", "-", "_").Replace(l)
	for _, st := range types.AllStatuses {
		if l == string(st) {
			return st
		}
	}
	switch {
	case strings.Contains(l, "answer") || strings.Contains(l, "unreach"):
		return types.StatusNoAnswer
	case strings.Contains(l, "busy"):
		return types.StatusBusy
	case strings.Contains(l, "reject") || strings.Contains(l, "declin"):
		return types.StatusRejected
	case strings.Contains(l, "complet") || strings.Contains(l, "success") || l == "done":
		return types.StatusCompleted
	}
	return types.StatusFailed
}

// ParsePrice reads "Rs 3,500", "₹3500" or "3500.00". Empty, invalid and
// non-positive values are nil.
func ParsePrice(s string) *float64 {
	s = strings.NewReplacer("₹", "", ",", "", "Rs.", "", "Rs", "", "INR", "", "rs", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"01-02-06 15:04",
}

// ParseTimestamp accepts the common export layouts and Excel serial dates.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
