package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

// ErrNotFound is returned when a report ID does not exist.
var ErrNotFound = errors.New("report not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS audit_reports (
	report_id    TEXT PRIMARY KEY,
	model        TEXT NOT NULL,
	surrogate    TEXT NOT NULL,
	n            INTEGER NOT NULL,
	correlation  DOUBLE PRECISION NOT NULL,
	r2           DOUBLE PRECISION NOT NULL,
	mae          DOUBLE PRECISION NOT NULL,
	passed       INTEGER NOT NULL,
	checks_json  TEXT NOT NULL,
	reason       TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	entry_id     TEXT PRIMARY KEY,
	report_id    TEXT REFERENCES audit_reports(report_id),
	subject      TEXT NOT NULL,
	decision     TEXT NOT NULL,
	reason       TEXT,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_reports_created_at ON audit_reports(created_at);
`

// #endregion schema

// #region store-struct
// Store is the audit ledger, backed by SQLite or Postgres.
type Store struct {
	db       *sql.DB
	postgres bool
}

// #endregion store-struct

// #region constructor
// NewStore opens the ledger and runs migrations. A DSN starting with
// postgres:// or postgresql:// selects Postgres; anything else is a SQLite path.
func NewStore(dsn string) (*Store, error) {
	if isPostgres(dsn) {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Store{db: db, postgres: true}, nil
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dsn == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ExecContext runs a statement written with ? placeholders.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// QueryContext runs a query written with ? placeholders.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// #endregion db-accessor

// #region save-report
// SaveReport inserts a report.
func (s *Store) SaveReport(ctx context.Context, r audit.Report) error {
	return insertReport(ctx, s, r)
}

// RecordReport inserts a report and its audit log entry in one transaction.
// Neither row is written if either insert fails.
func (s *Store) RecordReport(ctx context.Context, r audit.Report, subject, decision string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	btx := boundTx{tx: tx, rebind: s.rebind}
	if err := insertReport(ctx, btx, r); err != nil {
		return err
	}
	err = logging.LogDecision(ctx, btx, logging.AuditEntry{
		ReportID:  r.ID,
		Subject:   subject,
		Decision:  decision,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report %s: %w", r.ID, err)
	}
	return nil
}

// LogDecision appends an audit log entry.
func (s *Store) LogDecision(ctx context.Context, reportID, subject, decision, reason string) error {
	return logging.LogDecision(ctx, s, logging.AuditEntry{
		ReportID: reportID,
		Subject:  subject,
		Decision: decision,
		Reason:   reason,
	})
}

func insertReport(ctx context.Context, db logging.DB, r audit.Report) error {
	checksJSON, err := json.Marshal(r.Checks)
	if err != nil {
		return fmt.Errorf("marshal checks: %w", err)
	}

	passed := 0
	if r.Passed {
		passed = 1
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO audit_reports (report_id, model, surrogate, n, correlation, r2, mae, passed, checks_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Model, r.Surrogate, r.N, r.Fidelity.Correlation, r.Fidelity.R2, r.MAE,
		passed, string(checksJSON), r.Reason, r.CreatedAt.UTC().Format(logging.TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// boundTx satisfies logging.DB inside a transaction, with the store's
// placeholder rebinding.
type boundTx struct {
	tx     *sql.Tx
	rebind func(string) string
}

func (b boundTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.tx.ExecContext(ctx, b.rebind(query), args...)
}

func (b boundTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.tx.QueryContext(ctx, b.rebind(query), args...)
}

// #endregion save-report

// #region get-report
const reportColumns = `report_id, model, surrogate, n, correlation, r2, mae, passed, checks_json, reason, created_at`

// GetReport retrieves a report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (audit.Report, error) {
	row := s.queryRowContext(ctx, `SELECT `+reportColumns+` FROM audit_reports WHERE report_id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Report{}, fmt.Errorf("get report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return audit.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

// #endregion get-report

// #region list-reports
// ListReports returns the most recent reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]audit.Report, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM audit_reports ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []audit.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ListDecisions returns the most recent audit log entries.
func (s *Store) ListDecisions(ctx context.Context, limit int) ([]logging.AuditEntry, error) {
	return logging.ListDecisions(ctx, s, limit)
}

// #endregion list-reports

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (audit.Report, error) {
	var r audit.Report
	var passed int
	var checksJSON string
	var reason sql.NullString
	var createdStr string

	err := sc.Scan(&r.ID, &r.Model, &r.Surrogate, &r.N, &r.Fidelity.Correlation, &r.Fidelity.R2,
		&r.MAE, &passed, &checksJSON, &reason, &createdStr)
	if err != nil {
		return audit.Report{}, err
	}
	r.Passed = passed != 0
	r.Reason = reason.String
	if err := json.Unmarshal([]byte(checksJSON), &r.Checks); err != nil {
		return audit.Report{}, fmt.Errorf("unmarshal checks: %w", err)
	}
	r.CreatedAt, _ = time.Parse(logging.TimeFormat, createdStr)
	return r, nil
}

// #endregion scan
