package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/types"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	mem, err := NewSQLStore(DriverSQLite, ":memory:", logger.Discard())
	require.NoError(t, err)
	file, err := NewSQLStore(DriverSQLite, filepath.Join(t.TempDir(), "db", "eval.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		file.Close()
	})
	return map[string]Store{
		"memory":        NewMemoryStore(),
		"sqlite-memory": mem,
		"sqlite-file":   file,
	}
}

func run(id string, at time.Time, quoteRate int) evalmetrics.EvalRunResult {
	m := evalmetrics.CalculateBasic(nil)
	m.TotalCalls = 10
	m.QuoteObtainedRate = quoteRate
	m.SafetyIssues = []evalmetrics.IssueCount{{Issue: "rude tone", Count: 1}}
	from := at.Add(-24 * time.Hour)
	return evalmetrics.EvalRunResult{
		ID:      id,
		RunAt:   at,
		Metrics: m,
		CallIDs: []string{"c1", "c2"},
		Notes:   "note " + id,
		Config:  evalmetrics.RunConfig{From: &from, MinCalls: 3, AnalyzeTranscripts: true},
	}
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LatestRun(ctx)
			assert.ErrorIs(t, err, ErrRunNotFound)

			r1 := run("r1", base, 50)
			r2 := run("r2", base.Add(time.Hour), 60)
			r3 := run("r3", base.Add(2*time.Hour), 70)
			for _, r := range []evalmetrics.EvalRunResult{r2, r1, r3} {
				require.NoError(t, s.SaveRun(ctx, r))
			}

			got, err := s.GetRun(ctx, "r2")
			require.NoError(t, err)
			assert.Equal(t, r2.ID, got.ID)
			assert.True(t, r2.RunAt.Equal(got.RunAt))
			assert.Equal(t, r2.Metrics, got.Metrics)
			assert.Equal(t, r2.CallIDs, got.CallIDs)
			assert.Equal(t, r2.Notes, got.Notes)
			assert.Equal(t, 3, got.Config.MinCalls)
			require.NotNil(t, got.Config.From)
			assert.True(t, r2.Config.From.Equal(*got.Config.From))

			_, err = s.GetRun(ctx, "missing")
			assert.ErrorIs(t, err, ErrRunNotFound)

			latest, err := s.LatestRun(ctx)
			require.NoError(t, err)
			assert.Equal(t, "r3", latest.ID)

			list, err := s.ListRuns(ctx, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "r3", list[0].ID)
			assert.Equal(t, "r2", list[1].ID)

			all, err := s.ListRuns(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestCallHistory(t *testing.T) {
	ctx := context.Background()
	d := func(day int) time.Time { return time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC) }
	calls := []types.CallRecord{
		{CallID: "c2", Timestamp: d(2), Status: types.StatusBusy},
		{CallID: "c1", Timestamp: d(1), Status: types.StatusCompleted, VendorName: "Sharma Travels",
			QuotedPrice: types.Price(3500), NegotiatedPrice: types.Price(3200),
			Requirements: map[string]string{"vehicle": "sedan"}, Transcript: "hello", SessionID: "s1"},
		{CallID: "c3", Timestamp: d(3), Status: types.StatusNoAnswer},
	}
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutCalls(ctx, calls))

			got, err := s.ListCalls(ctx, CallFilter{})
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "c1", got[0].CallID)
			assert.Equal(t, "Sharma Travels", got[0].VendorName)
			assert.Equal(t, 3500.0, *got[0].QuotedPrice)
			assert.Equal(t, 3200.0, *got[0].NegotiatedPrice)
			assert.Equal(t, map[string]string{"vehicle": "sedan"}, got[0].Requirements)
			assert.True(t, d(1).Equal(got[0].Timestamp))
			assert.Nil(t, got[1].QuotedPrice)

			from, to := d(2), d(3)
			got, err = s.ListCalls(ctx, CallFilter{From: &from, To: &to})
			require.NoError(t, err)
			assert.Len(t, got, 2)

			got, err = s.ListCalls(ctx, CallFilter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, got, 1)

			updated := calls[1]
			updated.Status = types.StatusFailed
			require.NoError(t, s.PutCalls(ctx, []types.CallRecord{updated}))
			got, err = s.ListCalls(ctx, CallFilter{})
			require.NoError(t, err)
			assert.Len(t, got, 3)
			assert.Equal(t, types.StatusFailed, got[0].Status)
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("", "", logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("mysql", "x", logger.Discard())
	assert.Error(t, err)

	_, err = Open(DriverSQLite, "", logger.Discard())
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
