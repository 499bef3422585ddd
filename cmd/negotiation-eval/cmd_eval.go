package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"negotiation-eval-go/internal/dataset"
	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/pipeline"
)

type evalFlags struct {
	data     string
	importDB bool
	from     string
	to       string
	vendor   string
	minCalls int
	analyze  bool
	period   string
	notes    string
	compare  bool
	xlsx     string
	json     bool
}

var evalF evalFlags

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Compute eval metrics over call records and store the run",
	Long: "Scores calls from --data, or from call history in the database when --data\n" +
		"is empty. Transcript analysis (attempt and safety rates) costs one completion\n" +
		"per transcript and only runs with --analyze.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.done()

		req := pipeline.EvalRequest{
			Config: evalmetrics.RunConfig{
				PersonaFilter:      evalF.vendor,
				MinCalls:           evalF.minCalls,
				AnalyzeTranscripts: evalF.analyze,
			},
			Notes:   evalF.notes,
			Compare: evalF.compare,
		}
		if req.Config.From, err = parseDate(evalF.from, false); err != nil {
			return err
		}
		if req.Config.To, err = parseDate(evalF.to, true); err != nil {
			return err
		}
		if evalF.period != "" {
			if req.Period, err = evalmetrics.ParsePeriod(evalF.period); err != nil {
				return err
			}
		}

		var rep pipeline.EvalReport
		if evalF.data != "" {
			calls, _, err := dataset.LoadAndSummarize(evalF.data, e.log)
			if err != nil {
				return err
			}
			if evalF.importDB {
				if err := e.p.Store().PutCalls(cmd.Context(), calls); err != nil {
					return fmt.Errorf("import calls: %w", err)
				}
			}
			rep, err = e.p.Evaluate(cmd.Context(), calls, req)
			if err != nil {
				return err
			}
		} else {
			if rep, err = e.p.EvaluateStored(cmd.Context(), req); err != nil {
				return err
			}
		}

		if evalF.xlsx != "" {
			if err := dataset.WriteRunWorkbook(evalF.xlsx, rep.Run, rep.Periods); err != nil {
				return err
			}
		}
		if evalF.json {
			return writeJSON(cmd.OutOrStdout(), rep)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s (persisted: %t)\n\n%s", rep.Run.ID, rep.Persisted, rep.Report)
		for _, p := range rep.Periods {
			m := p.Metrics
			fmt.Fprintf(cmd.OutOrStdout(), "%s  calls=%d quote=%d%% success=%d%%\n", p.Period, m.TotalCalls, m.QuoteObtainedRate, m.NegotiationSuccessRate)
		}
		return nil
	},
}

// parseDate reads YYYY-MM-DD; endOfDay moves it to the last instant of the day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalF.data, "data", "", "call records file (.xlsx or .json); empty reads call history from the database")
	f.BoolVar(&evalF.importDB, "import", false, "also import --data into call history")
	f.StringVar(&evalF.from, "from", "", "first day to include (YYYY-MM-DD)")
	f.StringVar(&evalF.to, "to", "", "last day to include (YYYY-MM-DD)")
	f.StringVar(&evalF.vendor, "vendor", "", "only calls whose vendor name contains this text")
	f.IntVar(&evalF.minCalls, "min-calls", 1, "fail when fewer calls match")
	f.BoolVar(&evalF.analyze, "analyze", false, "analyse transcripts for attempt and safety rates")
	f.StringVar(&evalF.period, "period", "", "also break metrics down by day, week or month")
	f.StringVar(&evalF.notes, "notes", "", "notes stored with the run")
	f.BoolVar(&evalF.compare, "compare", true, "compare with the latest stored run")
	f.StringVar(&evalF.xlsx, "xlsx", "", "export the run to this workbook")
	f.BoolVar(&evalF.json, "json", false, "print the full result as JSON")
}
