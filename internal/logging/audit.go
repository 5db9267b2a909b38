package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region db
// DB is the subset of *sql.DB the audit log needs. *store.Store implements it
// with placeholder rebinding for Postgres.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// #endregion db

// #region log-decision
// LogDecision writes an entry to the audit_log table.
func LogDecision(ctx context.Context, db DB, entry AuditEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (entry_id, report_id, subject, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.EntryID,
		nullIfEmpty(entry.ReportID),
		entry.Subject,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the most recent audit log entries, newest first.
func ListDecisions(ctx context.Context, db DB, limit int) ([]AuditEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT entry_id, report_id, subject, decision, reason, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var reportID, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.EntryID, &reportID, &e.Subject, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.ReportID = reportID.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(TimeFormat, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
