// Package store persists eval runs and reads historical call records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/types"
)

var ErrRunNotFound = errors.New("eval run not found")

// EvalRunStore keeps eval runs. Runs are immutable once saved.
type EvalRunStore interface {
	SaveRun(ctx context.Context, run evalmetrics.EvalRunResult) error
	GetRun(ctx context.Context, id string) (evalmetrics.EvalRunResult, error)
	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]evalmetrics.EvalRunResult, error)
	LatestRun(ctx context.Context) (evalmetrics.EvalRunResult, error)
}

// CallFilter narrows ListCalls to a time range, inclusive on both ends.
type CallFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

func (f CallFilter) match(c types.CallRecord) bool {
	if f.From != nil && c.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && c.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// CallSource is read access to call history.
type CallSource interface {
	ListCalls(ctx context.Context, f CallFilter) ([]types.CallRecord, error)
}

// Store is everything the pipeline needs from persistence.
type Store interface {
	EvalRunStore
	CallSource
	// PutCalls imports call records into call history, replacing by id.
	PutCalls(ctx context.Context, calls []types.CallRecord) error
	Close() error
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the store for driver. An empty driver means in-memory.
func Open(driver, dsn string, log *logger.Logger) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(driver, dsn, log)
	}
	return nil, fmt.Errorf("unknown database driver %q", driver)
}
