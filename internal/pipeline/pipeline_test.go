package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/simulator"
	"negotiation-eval-go/internal/store"
	"negotiation-eval-go/internal/telemetry"
	"negotiation-eval-go/internal/types"
)

const transcript = "Bot: Namaste ji, Delhi se Agra sedan ka rate kya hoga? Vendor: 3500 lagega. Bot: Thoda kam kar dijiye. Vendor: Chaliye 3200."

func offline(t *testing.T, st store.Store) *Pipeline {
	t.Helper()
	tpl, err := persona.DefaultTemplates()
	require.NoError(t, err)
	c := llm.Router{
		Default: llm.NewMockClient(),
		Routes:  map[llm.Site]llm.Completer{llm.SiteVendorResponse: simulator.ScriptedVendor{}},
	}
	return New(Deps{LLM: c, Templates: tpl, Store: st, Log: logger.Discard(), Metrics: telemetry.NewMetrics(), Concurrency: 2})
}

func calls() []types.CallRecord {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return []types.CallRecord{
		{CallID: "c1", Timestamp: at, Status: types.StatusCompleted, QuotedPrice: types.Price(3500), NegotiatedPrice: types.Price(3200), Transcript: transcript},
		{CallID: "c2", Timestamp: at.Add(24 * time.Hour), Status: types.StatusCompleted, QuotedPrice: types.Price(3000), Transcript: transcript},
		{CallID: "c3", Timestamp: at.Add(48 * time.Hour), Status: types.StatusNoAnswer},
	}
}

type failingSave struct{ *store.MemoryStore }

func (failingSave) SaveRun(context.Context, evalmetrics.EvalRunResult) error {
	return errors.New("disk full")
}

func TestBuildPersonas(t *testing.T) {
	p := offline(t, nil)
	res := p.BuildPersonas(context.Background(), calls())

	assert.Equal(t, 2, res.Extraction.Stats.CallsAnalyzed)
	assert.Equal(t, 2, res.Extraction.Stats.Successful)
	assert.Equal(t, 1, res.Extraction.Stats.PersonasCreated)
	require.Len(t, res.Refined, 1)
	assert.Equal(t, "flexible_driver_refined", res.Refined[0].ID)
	assert.Equal(t, persona.ConfidenceMedium, res.Refined[0].Confidence)
	assert.Len(t, res.Library, 6)
}

func TestSimulateDefaults(t *testing.T) {
	p := offline(t, nil)
	res, err := p.Simulate(context.Background(), simulator.BatchConfig{Size: 20})
	require.NoError(t, err)
	assert.Len(t, res.Results, 20)
	assert.Equal(t, 6, res.Summary.ByPersona["flexible_driver"].Calls)
}

func TestEvaluateComparesAndPersists(t *testing.T) {
	st := store.NewMemoryStore()
	p := offline(t, st)
	ctx := context.Background()

	first, err := p.Evaluate(ctx, calls(), EvalRequest{Compare: true, Period: evalmetrics.Day})
	require.NoError(t, err)
	assert.True(t, first.Persisted)
	assert.Nil(t, first.Comparison)
	assert.Len(t, first.Periods, 3)
	assert.Equal(t, 67, first.Run.Metrics.QuoteObtainedRate)
	assert.Contains(t, first.Report, "| Quote obtained rate | 67% |")

	second, err := p.Evaluate(ctx, calls()[:2], EvalRequest{
		Compare: true,
		Config:  evalmetrics.RunConfig{AnalyzeTranscripts: true},
	})
	require.NoError(t, err)
	require.NotNil(t, second.Comparison)
	assert.Equal(t, first.Run.ID, second.PreviousID)
	assert.Equal(t, 33, second.Comparison.Deltas.QuoteObtainedRate)
	assert.True(t, second.Run.Metrics.TranscriptsAnalyzed)
	assert.Contains(t, second.Report, "## Trend vs Previous Run")

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestEvaluateSurvivesPersistenceFailure(t *testing.T) {
	p := offline(t, failingSave{store.NewMemoryStore()})
	res, err := p.Evaluate(context.Background(), calls(), EvalRequest{})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.NotEmpty(t, res.Run.ID)
	assert.NotEmpty(t, res.Report)
}

func TestEvaluateInsufficientCalls(t *testing.T) {
	p := offline(t, store.NewMemoryStore())
	_, err := p.Evaluate(context.Background(), calls(), EvalRequest{Config: evalmetrics.RunConfig{MinCalls: 10}})
	assert.ErrorIs(t, err, evalmetrics.ErrInsufficientCalls)
}

func TestEvaluateStoredAndReports(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.PutCalls(ctx, calls()))
	p := offline(t, st)

	from := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	a, err := p.EvaluateStored(ctx, EvalRequest{Config: evalmetrics.RunConfig{From: &from}})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Run.Metrics.TotalCalls)

	b, err := p.EvaluateStored(ctx, EvalRequest{})
	require.NoError(t, err)

	cmp, md, err := p.CompareRuns(ctx, b.Run.ID, a.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, cmp.Deltas.QuoteObtainedRate)
	assert.True(t, strings.Contains(md, "**Verdict:**"))

	md, err = p.RunReport(ctx, a.Run.ID)
	require.NoError(t, err)
	assert.Contains(t, md, "| Quote obtained rate | 50% |")

	_, err = p.RunReport(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestSyntheticBatchEvaluates(t *testing.T) {
	p := offline(t, nil)
	ctx := context.Background()
	batch, err := p.Simulate(ctx, simulator.BatchConfig{Size: 10})
	require.NoError(t, err)

	res, err := p.Evaluate(ctx, batch.CallRecords(time.Now()), EvalRequest{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Run.Metrics.TotalCalls)
	assert.Equal(t, 100, res.Run.Metrics.QuoteObtainedRate)
	assert.False(t, res.Persisted)
}

func TestFromConfigMock(t *testing.T) {
	cfg := &config.Config{
		LLM:         config.LLM{Provider: config.ProviderMock},
		Database:    config.Database{Driver: store.DriverMemory},
		Concurrency: 1,
	}
	p, closeFn, err := FromConfig(cfg, logger.Discard())
	require.NoError(t, err)
	defer closeFn()

	res, err := p.Simulate(context.Background(), simulator.BatchConfig{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Summary.Overall.QuoteObtainedRate)
	assert.Equal(t, 5, p.Templates().Len())
	assert.NotNil(t, p.Store())
}
