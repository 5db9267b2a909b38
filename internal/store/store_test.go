package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string, created time.Time) audit.Report {
	corr := 0.97
	return audit.Report{
		ID:        id,
		Model:     "vault-gbm",
		Surrogate: "vault-linear",
		N:         40,
		Fidelity:  fidelity.Result{Correlation: corr, R2: 0.93},
		MAE:       0.04,
		Passed:    true,
		Checks: []eval.Check{
			{Name: "fidelity_correlation", Value: &corr, Target: 0.9, Direction: eval.DirectionMin, Required: true, Status: eval.StatusPass},
			{Name: "clinician_agreement", Target: 0.75, Direction: eval.DirectionMin, Status: eval.StatusMissing},
		},
		Reason:    "all required checks passed",
		CreatedAt: created,
	}
}

func TestSaveAndGetReport(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	want := sampleReport("r1", time.Date(2026, 4, 2, 10, 30, 0, 123, time.UTC))

	if err := s.SaveReport(ctx, want); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := s.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetReportNotFound(t *testing.T) {
	s := tempDB(t)

	_, err := s.GetReport(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveReportDuplicateID(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	r := sampleReport("dup", time.Now().UTC())

	if err := s.SaveReport(ctx, r); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveReport(ctx, r); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestListReportsNewestFirst(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	// sub-second offsets check that timestamps sort correctly as text
	offsets := []time.Duration{0, 500 * time.Millisecond, 510 * time.Millisecond, 2 * time.Second}
	for i, off := range offsets {
		id := string(rune('a' + i))
		if err := s.SaveReport(ctx, sampleReport(id, base.Add(off))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	reports, err := s.ListReports(ctx, 3)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	var ids []string
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"d", "c", "b"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLogDecisionThroughStore(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.SaveReport(ctx, sampleReport("r1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.LogDecision(ctx, "r1", "vault-gbm vs vault-linear", logging.DecisionPass, "ok"); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}
	if err := s.LogDecision(ctx, "", "m vs s", logging.DecisionInvalidInput, "length mismatch"); err != nil {
		t.Fatalf("LogDecision without report: %v", err)
	}

	entries, err := s.ListDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestLogDecisionUnknownReportRejected(t *testing.T) {
	s := tempDB(t)

	err := s.LogDecision(context.Background(), "nope", "m vs s", logging.DecisionPass, "")
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestAuditorPersistsThroughStore(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	a := audit.NewAuditor(eval.DefaultCatalog(), s, nil)

	rep, err := a.Run(ctx, audit.Request{
		Model:            "vault-gbm",
		Surrogate:        "vault-tree",
		ModelOutputs:     []float64{1, 2, 3, 4},
		SurrogateOutputs: []float64{1.1, 1.9, 3.2, 3.8},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := s.GetReport(ctx, rep.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Fidelity != rep.Fidelity || got.Passed != rep.Passed {
		t.Fatalf("stored report differs: %+v vs %+v", got, rep)
	}
}

func TestRecordReportWritesBoth(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	r := sampleReport("r1", time.Now().UTC())
	if err := s.RecordReport(ctx, r, "vault-gbm vs vault-linear", logging.DecisionPass); err != nil {
		t.Fatalf("RecordReport: %v", err)
	}
	if _, err := s.GetReport(ctx, "r1"); err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	entries, err := s.ListDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(entries) != 1 || entries[0].ReportID != "r1" || entries[0].Reason != r.Reason {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRecordReportRollsBackWhenLogWriteFails(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	_, err := s.DB().ExecContext(ctx,
		`CREATE TRIGGER reject_log BEFORE INSERT ON audit_log BEGIN SELECT RAISE(ABORT, 'log disabled'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	a := audit.NewAuditor(eval.DefaultCatalog(), s, nil)
	_, err = a.Run(ctx, audit.Request{
		Model:            "vault-gbm",
		Surrogate:        "vault-tree",
		ModelOutputs:     []float64{1, 2, 3, 4},
		SurrogateOutputs: []float64{1.1, 1.9, 3.2, 3.8},
	})
	if err == nil {
		t.Fatal("expected Run to fail when the audit log rejects the entry")
	}

	reports, err := s.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("report committed without its log entry: %+v", reports)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{postgres: true}
	if got := pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"); got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("unexpected rebind: %s", got)
	}
	lite := &Store{}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite query should be unchanged: %s", got)
	}
}

func TestIsPostgres(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost/db":   true,
		"postgresql://localhost/audits": true,
		"/var/lib/audit.db":             false,
		":memory:":                      false,
	}
	for dsn, want := range cases {
		if got := isPostgres(dsn); got != want {
			t.Errorf("isPostgres(%q) = %v, want %v", dsn, got, want)
		}
	}
}
