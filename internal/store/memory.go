package store

import (
	"context"
	"sort"
	"sync"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/types"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]evalmetrics.EvalRunResult
	calls map[string]types.CallRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  map[string]evalmetrics.EvalRunResult{},
		calls: map[string]types.CallRecord{},
	}
}

func (m *MemoryStore) SaveRun(_ context.Context, run evalmetrics.EvalRunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (evalmetrics.EvalRunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return evalmetrics.EvalRunResult{}, ErrRunNotFound
	}
	return run, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]evalmetrics.EvalRunResult, error) {
	m.mu.RLock()
	out := make([]evalmetrics.EvalRunResult, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RunAt.Equal(out[j].RunAt) {
			return out[i].RunAt.After(out[j].RunAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) LatestRun(ctx context.Context) (evalmetrics.EvalRunResult, error) {
	runs, _ := m.ListRuns(ctx, 1)
	if len(runs) == 0 {
		return evalmetrics.EvalRunResult{}, ErrRunNotFound
	}
	return runs[0], nil
}

func (m *MemoryStore) PutCalls(_ context.Context, calls []types.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range calls {
		m.calls[c.CallID] = c
	}
	return nil
}

func (m *MemoryStore) ListCalls(_ context.Context, f CallFilter) ([]types.CallRecord, error) {
	m.mu.RLock()
	out := make([]types.CallRecord, 0, len(m.calls))
	for _, c := range m.calls {
		if f.match(c) {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].CallID < out[j].CallID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
