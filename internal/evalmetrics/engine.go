package evalmetrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/telemetry"
	"negotiation-eval-go/internal/types"
)

var ErrInsufficientCalls = errors.New("not enough calls for an eval run")

type Options struct {
	// AnalyzeTranscripts enables the per-transcript completion requests
	// behind attempt and safety rates.
	AnalyzeTranscripts bool
}

// RunConfig is the filter and threshold block stored with a run.
type RunConfig struct {
	From               *time.Time `json:"from,omitempty"`
	To                 *time.Time `json:"to,omitempty"`
	PersonaFilter      string     `json:"persona_filter,omitempty"`
	MinCalls           int        `json:"min_calls"`
	AnalyzeTranscripts bool       `json:"analyze_transcripts"`
}

type EvalRunResult struct {
	ID      string      `json:"id"`
	RunAt   time.Time   `json:"run_at"`
	Metrics EvalMetrics `json:"metrics"`
	CallIDs []string    `json:"call_ids"`
	Notes   string      `json:"notes,omitempty"`
	Config  RunConfig   `json:"config"`
}

// NewRun stamps metrics with a fresh run id and the current time.
func NewRun(m EvalMetrics, callIDs []string, notes string, cfg RunConfig) EvalRunResult {
	ids := append([]string{}, callIDs...)
	return EvalRunResult{
		ID:      uuid.NewString(),
		RunAt:   time.Now().UTC(),
		Metrics: m,
		CallIDs: ids,
		Notes:   notes,
		Config:  cfg,
	}
}

// FilterCalls keeps calls inside the config's time range (inclusive) whose
// vendor name contains PersonaFilter, case-insensitively.
func FilterCalls(calls []types.CallRecord, cfg RunConfig) []types.CallRecord {
	filter := strings.ToLower(strings.TrimSpace(cfg.PersonaFilter))
	out := make([]types.CallRecord, 0, len(calls))
	for _, c := range calls {
		if cfg.From != nil && c.Timestamp.Before(*cfg.From) {
			continue
		}
		if cfg.To != nil && c.Timestamp.After(*cfg.To) {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(c.VendorName), filter) {
			continue
		}
		out = append(out, c)
	}
	return out
}

type Engine struct {
	analyzer    *Analyzer
	log         *logrus.Entry
	metrics     *telemetry.Metrics
	Concurrency int
}

func NewEngine(a *Analyzer, log *logger.Logger, m *telemetry.Metrics) *Engine {
	return &Engine{analyzer: a, log: log.Component("eval-metrics"), metrics: m, Concurrency: 1}
}

// Calculate computes basic metrics and, when asked, the transcript-based
// attempt and safety rates. Calls with short or missing transcripts are not
// analysed but stay in every denominator they belong to.
func (e *Engine) Calculate(ctx context.Context, calls []types.CallRecord, opts Options) EvalMetrics {
	m := CalculateBasic(calls)
	if !opts.AnalyzeTranscripts || e.analyzer == nil {
		return m
	}

	analyses := e.analyzeAll(ctx, calls)

	attempted, unsafeCompleted := 0, 0
	tally := map[string]int{}
	for i, c := range calls {
		a := analyses[i]
		if a == nil {
			continue
		}
		m.CallsAnalyzed++
		if c.HasQuote() && a.BotAttemptedNegotiation {
			attempted++
		}
		if c.Status == types.StatusCompleted && !a.IsSafe {
			unsafeCompleted++
		}
		for _, issue := range a.SafetyIssues {
			tally[issue]++
		}
	}

	m.TranscriptsAnalyzed = true
	m.NegotiationAttemptRate = Percent(attempted, m.CallsWithQuote)
	if m.Outcomes.Completed > 0 {
		m.SafetyRate = Percent(m.Outcomes.Completed-unsafeCompleted, m.Outcomes.Completed)
	}
	m.SafetyIssues = sortIssues(tally)
	return m
}

func (e *Engine) analyzeAll(ctx context.Context, calls []types.CallRecord) []*TranscriptAnalysis {
	out := make([]*TranscriptAnalysis, len(calls))
	analyze := func(ctx context.Context, i int) {
		t := strings.TrimSpace(calls[i].Transcript)
		if len(t) < MinTranscriptLength {
			return
		}
		res := e.analyzer.AnalyzeTranscript(ctx, t)
		out[i] = &res
	}

	if e.Concurrency <= 1 {
		for i := range calls {
			analyze(ctx, i)
		}
		return out
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.Concurrency)
	for i := range calls {
		i := i
		g.Go(func() error {
			analyze(gCtx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Run filters calls, enforces the minimum-call threshold and computes a
// stamped eval run.
func (e *Engine) Run(ctx context.Context, calls []types.CallRecord, cfg RunConfig, notes string) (EvalRunResult, error) {
	selected := FilterCalls(calls, cfg)
	if len(selected) < cfg.MinCalls {
		return EvalRunResult{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCalls, len(selected), cfg.MinCalls)
	}

	m := e.Calculate(ctx, selected, Options{AnalyzeTranscripts: cfg.AnalyzeTranscripts})
	ids := make([]string, len(selected))
	for i, c := range selected {
		ids[i] = c.CallID
	}
	run := NewRun(m, ids, notes, cfg)

	if e.metrics != nil {
		e.metrics.EvalRunsTotal.Inc()
	}
	e.log.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"calls":        m.TotalCalls,
		"quote_rate":   m.QuoteObtainedRate,
		"success_rate": m.NegotiationSuccessRate,
		"safety_rate":  m.SafetyRate,
	}).Info("eval run computed")
	return run, nil
}

// sortIssues orders the tally by count, then issue text.
func sortIssues(tally map[string]int) []IssueCount {
	out := make([]IssueCount, 0, len(tally))
	for issue, n := range tally {
		out = append(out, IssueCount{Issue: issue, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Issue < out[j].Issue
	})
	return out
}
