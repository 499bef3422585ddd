package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <current-run-id> <previous-run-id>",
	Short: "Compare two stored eval runs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.done()

		_, md, err := e.p.CompareRuns(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored eval runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.done()

		runs, err := e.p.Store().ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No eval runs stored.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tRun at\tCalls\tQuote\tAttempt\tSuccess\tSafety\tNotes\n")
		for _, r := range runs {
			m := r.Metrics
			fmt.Fprintf(w, "%s\t%s\t%d\t%d%%\t%d%%\t%d%%\t%d%%\t%s\n",
				r.ID, r.RunAt.Format("2006-01-02 15:04"), m.TotalCalls,
				m.QuoteObtainedRate, m.NegotiationAttemptRate, m.NegotiationSuccessRate, m.SafetyRate, r.Notes)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}
