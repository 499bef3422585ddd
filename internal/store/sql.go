package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/types"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

const (
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
)

// SQLStore is a Store over database/sql for SQLite and Postgres. Scalar
// headline metrics get their own columns; the full metrics, call ids and
// config are stored as JSON.
type SQLStore struct {
	db     *sql.DB
	driver string
	log    *logrus.Entry
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(driver, dsn string, log *logger.Logger) (*SQLStore, error) {
	l := log.Component("store").WithField("driver", driver)
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	migrations := sqliteMigrations
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DriverPostgres:
		migrations = postgresMigrations
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps :memory: databases shared and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	l.Debug("database ready")
	return &SQLStore{db: db, driver: driver, log: l}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const runColumns = `id, run_at, total_calls, quote_obtained_rate, negotiation_attempt_rate,
	negotiation_success_rate, safety_rate, avg_price_reduction, total_savings,
	metrics_json, call_ids_json, config_json, notes`

func (s *SQLStore) SaveRun(ctx context.Context, run evalmetrics.EvalRunResult) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	callIDs, err := json.Marshal(run.CallIDs)
	if err != nil {
		return fmt.Errorf("encode call ids: %w", err)
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	m := run.Metrics
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO eval_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.RunAt.UTC(), m.TotalCalls, m.QuoteObtainedRate, m.NegotiationAttemptRate,
		m.NegotiationSuccessRate, m.SafetyRate, m.AvgPriceReductionPercent, m.TotalSavings,
		string(metrics), string(callIDs), string(cfg), run.Notes)
	if err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).Error("save run failed")
		return fmt.Errorf("insert eval run %s: %w", run.ID, err)
	}
	s.log.WithField("run_id", run.ID).Debug("eval run saved")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (evalmetrics.EvalRunResult, error) {
	var (
		run                                    evalmetrics.EvalRunResult
		total, quote, attempt, success, safety int
		reduction, savings                     float64
		metricsJSON, callIDsJSON, configJSON   string
	)
	if err := row.Scan(&run.ID, &run.RunAt, &total, &quote, &attempt, &success, &safety,
		&reduction, &savings, &metricsJSON, &callIDsJSON, &configJSON, &run.Notes); err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
		return run, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(callIDsJSON), &run.CallIDs); err != nil {
		return run, fmt.Errorf("decode call ids: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return run, fmt.Errorf("decode config: %w", err)
	}
	run.RunAt = run.RunAt.UTC()
	return run, nil
}

func (s *SQLStore) GetRun(ctx context.Context, id string) (evalmetrics.EvalRunResult, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM eval_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrRunNotFound
	}
	if err != nil {
		return run, fmt.Errorf("get eval run %s: %w", id, err)
	}
	return run, nil
}

func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]evalmetrics.EvalRunResult, error) {
	q := `SELECT ` + runColumns + ` FROM eval_runs ORDER BY run_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list eval runs: %w", err)
	}
	defer rows.Close()

	var out []evalmetrics.EvalRunResult
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eval run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eval runs: %w", err)
	}
	return out, nil
}

func (s *SQLStore) LatestRun(ctx context.Context) (evalmetrics.EvalRunResult, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return evalmetrics.EvalRunResult{}, err
	}
	if len(runs) == 0 {
		return evalmetrics.EvalRunResult{}, ErrRunNotFound
	}
	return runs[0], nil
}

func (s *SQLStore) PutCalls(ctx context.Context, calls []types.CallRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO call_history
		(id, vendor_name, vendor_phone, called_at, duration_sec, status, requirements_json,
		 quoted_price, negotiated_price, transcript, recording_url, notes, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		 vendor_name = excluded.vendor_name, vendor_phone = excluded.vendor_phone,
		 called_at = excluded.called_at, duration_sec = excluded.duration_sec,
		 status = excluded.status, requirements_json = excluded.requirements_json,
		 quoted_price = excluded.quoted_price, negotiated_price = excluded.negotiated_price,
		 transcript = excluded.transcript, recording_url = excluded.recording_url,
		 notes = excluded.notes, session_id = excluded.session_id`))
	if err != nil {
		return fmt.Errorf("prepare call insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range calls {
		req := c.Requirements
		if req == nil {
			req = map[string]string{}
		}
		reqJSON, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode requirements for %s: %w", c.CallID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.CallID, c.VendorName, c.VendorPhone, c.Timestamp.UTC(),
			c.DurationSec, string(c.Status), string(reqJSON), nullFloat(c.QuotedPrice), nullFloat(c.NegotiatedPrice),
			c.Transcript, c.RecordingURL, c.Notes, c.SessionID); err != nil {
			return fmt.Errorf("insert call %s: %w", c.CallID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit calls: %w", err)
	}
	s.log.WithField("calls", len(calls)).Debug("call history imported")
	return nil
}

func (s *SQLStore) ListCalls(ctx context.Context, f CallFilter) ([]types.CallRecord, error) {
	q := `SELECT id, vendor_name, vendor_phone, called_at, duration_sec, status, requirements_json,
		quoted_price, negotiated_price, transcript, recording_url, notes, session_id
		FROM call_history WHERE 1=1`
	var args []any
	if f.From != nil {
		q += ` AND called_at >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		q += ` AND called_at <= ?`
		args = append(args, f.To.UTC())
	}
	q += ` ORDER BY called_at, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []types.CallRecord
	for rows.Next() {
		var (
			c                  types.CallRecord
			status, reqJSON    string
			quoted, negotiated sql.NullFloat64
		)
		if err := rows.Scan(&c.CallID, &c.VendorName, &c.VendorPhone, &c.Timestamp, &c.DurationSec,
			&status, &reqJSON, &quoted, &negotiated, &c.Transcript, &c.RecordingURL, &c.Notes, &c.SessionID); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Status = types.CallStatus(status)
		c.Timestamp = c.Timestamp.UTC()
		if reqJSON != "" && reqJSON != "{}" {
			if err := json.Unmarshal([]byte(reqJSON), &c.Requirements); err != nil {
				return nil, fmt.Errorf("decode requirements for %s: %w", c.CallID, err)
			}
		}
		if quoted.Valid {
			c.QuotedPrice = types.Price(quoted.Float64)
		}
		if negotiated.Valid {
			c.NegotiatedPrice = types.Price(negotiated.Float64)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
