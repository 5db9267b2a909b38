package logging

import "time"

// TimeFormat is fixed-width so stored timestamps sort lexically.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region decisions
const (
	DecisionPass            = "pass"
	DecisionFail            = "fail"
	DecisionInvalidInput    = "invalid_input"
	DecisionDegenerateInput = "degenerate_input"
)

// #endregion decisions

// #region audit-entry
// AuditEntry is a single row in the audit_log table.
type AuditEntry struct {
	EntryID   string
	ReportID  string // empty when scoring failed before a report existed
	Subject   string // "<model> vs <surrogate>"
	Decision  string
	Reason    string
	CreatedAt time.Time
}

// #endregion audit-entry
