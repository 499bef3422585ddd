// negotiation-eval builds vendor personas from call transcripts, runs
// synthetic negotiations against them and scores bot calls.
//
// Usage:
//
//	negotiation-eval personas --data calls.xlsx --out library.yaml
//	negotiation-eval simulate --size 50 [--personas library.yaml] [--eval]
//	negotiation-eval eval [--data calls.json] [--from 2025-03-01] [--analyze] [--period week]
//	negotiation-eval compare <current-run-id> <previous-run-id>
//	negotiation-eval runs [--limit 10]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/pipeline"
	"negotiation-eval-go/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "negotiation-eval",
	Short: "Persona extraction, vendor simulation and metrics for the negotiation bot",
	Long: "negotiation-eval turns real vendor call transcripts into reusable personas,\n" +
		"simulates negotiations against them and computes the bot's headline metrics.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs: config, logger and a ready pipeline.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	p     *pipeline.Pipeline
	close func() error
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New()
	p, closeFn, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, p: p, close: closeFn}, nil
}

// done releases the store and dumps metrics when METRICS_FILE is set.
func (e *env) done() {
	if err := e.close(); err != nil {
		e.log.WithError(err).Warn("closing store")
	}
	if e.cfg.MetricsFile != "" {
		if err := telemetry.WriteTextfile(e.cfg.MetricsFile); err != nil {
			e.log.WithError(err).Warn("writing metrics file")
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output opens path for writing, or returns stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
