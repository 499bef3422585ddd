package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/pipeline"
	"negotiation-eval-go/internal/simulator"
)

type simulateFlags struct {
	size     int
	personas string
	mid      float64
	out      string
	eval     bool
	notes    string
}

var simulateF simulateFlags

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the bot script against a synthetic vendor population",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.done()

		cfg := simulator.BatchConfig{Size: simulateF.size, Concurrency: e.cfg.Concurrency}
		if simulateF.personas != "" {
			tpl, err := persona.LoadTemplates(simulateF.personas)
			if err != nil {
				return err
			}
			cfg.Personas = tpl.All()
		}
		if simulateF.mid > 0 {
			m := simulator.DefaultMarket
			scale := simulateF.mid / m.Mid
			cfg.Market = simulator.MarketPrice{Low: m.Low * scale, Mid: simulateF.mid, High: m.High * scale}
		}

		res, err := e.p.Simulate(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if simulateF.out != "" {
			w, closeOut, err := output(cmd, simulateF.out)
			if err != nil {
				return err
			}
			err = writeJSON(w, res)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Persona\tCalls\tQuote%%\tSuccess%%\tAvg reduction\tAvg rounds\n")
		for _, id := range res.Summary.PersonaIDs() {
			s := res.Summary.ByPersona[id]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\t%.1f\n", id, s.Calls, s.QuoteObtainedRate, s.NegotiationSuccessRate, s.AvgPriceReduction, s.AvgRounds)
		}
		o := res.Summary.Overall
		fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%.1f%%\t%.1f\n", o.Calls, o.QuoteObtainedRate, o.NegotiationSuccessRate, o.AvgPriceReduction, o.AvgRounds)
		tw.Flush()
		if res.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d simulations failed and were excluded\n", res.Failed)
		}

		if simulateF.eval {
			rep, err := e.p.Evaluate(cmd.Context(), res.CallRecords(time.Now()), pipeline.EvalRequest{Notes: simulateF.notes})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s\n\n%s", rep.Run.ID, rep.Report)
		}
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.IntVarP(&simulateF.size, "size", "n", 20, "number of synthetic vendors")
	f.StringVar(&simulateF.personas, "personas", "", "persona templates file (default: built-in templates and mix)")
	f.Float64Var(&simulateF.mid, "market-mid", 0, "market mid price for the trip (default 3200)")
	f.StringVarP(&simulateF.out, "out", "o", "", "write full results as JSON to this file")
	f.BoolVar(&simulateF.eval, "eval", false, "score the synthetic calls and store an eval run")
	f.StringVar(&simulateF.notes, "notes", "synthetic batch", "notes stored with the eval run")
}
