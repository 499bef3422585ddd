// Package pipeline wires the extraction, clustering, simulation and
// evaluation stages into the end-to-end flows the CLI and API expose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"negotiation-eval-go/internal/actionable"
	"negotiation-eval-go/internal/clustering"
	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/extractor"
	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/report"
	"negotiation-eval-go/internal/simulator"
	"negotiation-eval-go/internal/store"
	"negotiation-eval-go/internal/telemetry"
	"negotiation-eval-go/internal/types"
)

type Deps struct {
	LLM         llm.Completer
	Templates   *persona.Templates
	Store       store.Store // optional
	Log         *logger.Logger
	Metrics     *telemetry.Metrics
	Concurrency int
}

type Pipeline struct {
	templates *persona.Templates
	extractor *extractor.Extractor
	simulator *simulator.Simulator
	engine    *evalmetrics.Engine
	store     store.Store
	log       *logrus.Entry
	now       func() time.Time
}

func New(d Deps) *Pipeline {
	conc := d.Concurrency
	if conc < 1 {
		conc = 1
	}
	ext := extractor.New(d.LLM, d.Log, d.Metrics)
	ext.Concurrency = conc
	eng := evalmetrics.NewEngine(evalmetrics.NewAnalyzer(d.LLM, d.Log, d.Metrics), d.Log, d.Metrics)
	eng.Concurrency = conc
	return &Pipeline{
		templates: d.Templates,
		extractor: ext,
		simulator: simulator.New(d.LLM, d.Log, d.Metrics),
		engine:    eng,
		store:     d.Store,
		log:       d.Log.Component("pipeline"),
		now:       time.Now,
	}
}

// FromConfig builds the pipeline and its store from cfg. In mock mode the
// vendor side of simulations is played by the scripted vendor. The returned
// close func releases the store.
func FromConfig(cfg *config.Config, log *logger.Logger) (*Pipeline, func() error, error) {
	metrics := telemetry.NewMetrics()

	templates, err := persona.DefaultTemplates()
	if cfg.PersonaTemplates != "" {
		templates, err = persona.LoadTemplates(cfg.PersonaTemplates)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load persona templates: %w", err)
	}

	base, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, nil, err
	}
	var completer llm.Completer = base
	if cfg.LLM.Provider == config.ProviderMock {
		completer = llm.Router{
			Default: base,
			Routes:  map[llm.Site]llm.Completer{llm.SiteVendorResponse: simulator.ScriptedVendor{}},
		}
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	p := New(Deps{
		LLM:         llm.Instrument(completer, metrics),
		Templates:   templates,
		Store:       st,
		Log:         log,
		Metrics:     metrics,
		Concurrency: cfg.Concurrency,
	})
	p.log.WithFields(logrus.Fields{
		"llm_provider": cfg.LLM.Provider,
		"db_driver":    cfg.Database.Driver,
		"templates":    templates.Len(),
		"concurrency":  cfg.Concurrency,
	}).Info("pipeline ready")
	return p, st.Close, nil
}

func (p *Pipeline) Templates() *persona.Templates { return p.templates }

func (p *Pipeline) Store() store.Store { return p.store }

type PersonaBuild struct {
	Extraction extractor.BatchResult   `json:"extraction"`
	Refined    []persona.VendorPersona `json:"refined"`
	Library    []persona.VendorPersona `json:"library"`
}

// BuildPersonas extracts persona traits from every usable transcript and
// clusters them into refined personas on top of the baseline templates.
func (p *Pipeline) BuildPersonas(ctx context.Context, calls []types.CallRecord) PersonaBuild {
	batch := p.extractor.ExtractBatch(ctx, calls)
	refined := clustering.Cluster(batch.Extractions, p.templates, p.now().UTC())
	batch.Stats.PersonasCreated = len(refined)
	p.log.WithFields(logrus.Fields{
		"extractions": batch.Stats.Successful,
		"refined":     len(refined),
	}).Info("personas built")
	return PersonaBuild{
		Extraction: batch,
		Refined:    refined,
		Library:    clustering.Library(p.templates, refined),
	}
}

// Simulate runs a synthetic batch. With no personas given it uses the
// baseline templates and the default population mix.
func (p *Pipeline) Simulate(ctx context.Context, cfg simulator.BatchConfig) (simulator.BatchResult, error) {
	if len(cfg.Personas) == 0 {
		cfg.Personas = p.templates.All()
		if len(cfg.Distribution) == 0 {
			cfg.Distribution = persona.DefaultDistribution
		}
	}
	return p.simulator.RunEvalBatch(ctx, cfg)
}

type EvalRequest struct {
	Config evalmetrics.RunConfig `json:"config"`
	Notes  string                `json:"notes,omitempty"`
	// Period adds per-period basic metrics when set.
	Period evalmetrics.Period `json:"period,omitempty"`
	// Compare against the latest stored run.
	Compare bool `json:"compare"`
}

type EvalReport struct {
	Run        evalmetrics.EvalRunResult   `json:"run"`
	Comparison *evalmetrics.EvalComparison `json:"comparison,omitempty"`
	PreviousID string                      `json:"previous_id,omitempty"`
	Periods    []evalmetrics.PeriodMetrics `json:"periods,omitempty"`
	Cards      []actionable.ActionCard     `json:"recommendations"`
	Report     string                      `json:"report"`
	Persisted  bool                        `json:"persisted"`
}

// Evaluate computes an eval run over calls, compares it with the latest
// stored run when asked, renders the report and persists the run. A
// persistence failure is logged and the report is still returned.
func (p *Pipeline) Evaluate(ctx context.Context, calls []types.CallRecord, req EvalRequest) (EvalReport, error) {
	run, err := p.engine.Run(ctx, calls, req.Config, req.Notes)
	if err != nil {
		return EvalReport{}, err
	}
	out := EvalReport{Run: run}

	if req.Compare && p.store != nil {
		prev, err := p.store.LatestRun(ctx)
		switch {
		case err == nil:
			cmp := evalmetrics.Compare(run.Metrics, prev.Metrics)
			out.Comparison = &cmp
			out.PreviousID = prev.ID
		case errors.Is(err, store.ErrRunNotFound):
			p.log.Info("no previous run to compare against")
		default:
			p.log.WithError(err).Warn("could not load previous run, skipping comparison")
		}
	}

	if req.Period != "" {
		out.Periods = evalmetrics.GroupByPeriod(evalmetrics.FilterCalls(calls, req.Config), req.Period)
	}
	out.Cards = actionable.Generate(run.Metrics, out.Comparison)
	out.Report = report.Render(run.Metrics, out.Comparison, out.Cards)

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			p.log.WithError(err).WithField("run_id", run.ID).Error("failed to persist eval run, returning in-memory result")
		} else {
			out.Persisted = true
		}
	}
	return out, nil
}

// EvaluateStored reads call history for the request's time range and
// evaluates it.
func (p *Pipeline) EvaluateStored(ctx context.Context, req EvalRequest) (EvalReport, error) {
	if p.store == nil {
		return EvalReport{}, errors.New("no store configured")
	}
	calls, err := p.store.ListCalls(ctx, store.CallFilter{From: req.Config.From, To: req.Config.To})
	if err != nil {
		return EvalReport{}, fmt.Errorf("read call history: %w", err)
	}
	return p.Evaluate(ctx, calls, req)
}

// CompareRuns loads two stored runs and renders their comparison.
func (p *Pipeline) CompareRuns(ctx context.Context, currentID, previousID string) (evalmetrics.EvalComparison, string, error) {
	if p.store == nil {
		return evalmetrics.EvalComparison{}, "", errors.New("no store configured")
	}
	cur, err := p.store.GetRun(ctx, currentID)
	if err != nil {
		return evalmetrics.EvalComparison{}, "", fmt.Errorf("run %s: %w", currentID, err)
	}
	prev, err := p.store.GetRun(ctx, previousID)
	if err != nil {
		return evalmetrics.EvalComparison{}, "", fmt.Errorf("run %s: %w", previousID, err)
	}
	cmp := evalmetrics.Compare(cur.Metrics, prev.Metrics)
	cards := actionable.Generate(cur.Metrics, &cmp)
	return cmp, report.Render(cur.Metrics, &cmp, cards), nil
}

// RunReport re-renders a stored run without comparison.
func (p *Pipeline) RunReport(ctx context.Context, id string) (string, error) {
	if p.store == nil {
		return "", errors.New("no store configured")
	}
	run, err := p.store.GetRun(ctx, id)
	if err != nil {
		return "", err
	}
	return report.Render(run.Metrics, nil, actionable.Generate(run.Metrics, nil)), nil
}
