package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/types"
)

const (
	sheetSummary  = "Summary"
	sheetOutcomes = "Outcomes"
	sheetSafety   = "Safety"
	sheetPeriods  = "Periods"
)

// WriteRunWorkbook exports run (and optional per-period metrics) to an
// xlsx file with Summary, Outcomes, Safety and Periods sheets.
func WriteRunWorkbook(path string, run evalmetrics.EvalRunResult, periods []evalmetrics.PeriodMetrics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetOutcomes, sheetSafety, sheetPeriods} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	m := run.Metrics
	summary := [][]interface{}{
		{"Field", "Value"},
		{"Run ID", run.ID},
		{"Run at", run.RunAt.Format("2006-01-02 15:04:05")},
		{"Notes", run.Notes},
		{"Total calls", m.TotalCalls},
		{"Calls with quote", m.CallsWithQuote},
		{"Calls negotiated", m.CallsNegotiated},
		{"Quote obtained rate", m.QuoteObtainedRate},
		{"Negotiation attempt rate", m.NegotiationAttemptRate},
		{"Negotiation success rate", m.NegotiationSuccessRate},
		{"Safety rate", m.SafetyRate},
		{"Transcripts analysed", m.TranscriptsAnalyzed},
		{"Avg price reduction %", m.AvgPriceReductionPercent},
		{"Total savings", m.TotalSavings},
		{"Avg quoted price", m.AvgQuotedPrice},
		{"Avg final price", m.AvgFinalPrice},
		{"Avg duration (s)", m.AvgDurationSec},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	outcomes := [][]interface{}{{"Status", "Calls"}}
	for _, s := range types.AllStatuses {
		outcomes = append(outcomes, []interface{}{string(s), m.Outcomes.Count(s)})
	}
	if err := writeRows(f, sheetOutcomes, outcomes); err != nil {
		return err
	}

	safety := [][]interface{}{{"Issue", "Count"}}
	for _, is := range m.SafetyIssues {
		safety = append(safety, []interface{}{is.Issue, is.Count})
	}
	if err := writeRows(f, sheetSafety, safety); err != nil {
		return err
	}

	per := [][]interface{}{{"Period", "Calls", "Quote obtained rate", "Negotiation success rate", "Avg price reduction %", "Total savings"}}
	for _, p := range periods {
		per = append(per, []interface{}{
			p.Period, p.Metrics.TotalCalls, p.Metrics.QuoteObtainedRate,
			p.Metrics.NegotiationSuccessRate, p.Metrics.AvgPriceReductionPercent, p.Metrics.TotalSavings,
		})
	}
	if err := writeRows(f, sheetPeriods, per); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
