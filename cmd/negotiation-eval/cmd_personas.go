package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"negotiation-eval-go/internal/dataset"
	"negotiation-eval-go/internal/persona"
)

type personasFlags struct {
	data string
	out  string
	json bool
}

var personasF personasFlags

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Extract personas from call transcripts and cluster them into a library",
	Long: "Reads call records, extracts negotiation traits from every usable transcript\n" +
		"and refines the baseline templates per negotiation style. The library is\n" +
		"written as a templates file usable through PERSONA_TEMPLATES.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.done()

		path := personasF.data
		if path == "" {
			path = e.cfg.DatasetPath
		}
		calls, _, err := dataset.LoadAndSummarize(path, e.log)
		if err != nil {
			return err
		}
		build := e.p.BuildPersonas(cmd.Context(), calls)

		w, closeOut, err := output(cmd, personasF.out)
		if err != nil {
			return err
		}
		if personasF.json {
			err = writeJSON(w, build)
		} else {
			err = persona.WriteTemplates(w, build.Library)
		}
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		if personasF.out != "" {
			s := build.Extraction.Stats
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Persona\tStyle\tFlexibility\tConfidence\tCalls\n")
			for _, p := range build.Refined {
				fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%d\n", p.ID, p.NegotiationStyle, p.PriceFlexibility, p.Confidence, len(p.SourceCallIDs))
			}
			tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "\nAnalyzed %d calls, %d extractions (avg confidence %.0f), %d refined personas -> %s\n",
				s.CallsAnalyzed, s.Successful, s.AverageConfidence, s.PersonasCreated, personasF.out)
		}
		return nil
	},
}

func init() {
	f := personasCmd.Flags()
	f.StringVar(&personasF.data, "data", "", "call records file (.xlsx or .json); defaults to DATASET_PATH")
	f.StringVarP(&personasF.out, "out", "o", "", "output file (default stdout)")
	f.BoolVar(&personasF.json, "json", false, "write the full extraction result as JSON instead of a templates file")
}
