package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/vault_surrogates.json")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description == "" {
		t.Error("expected description")
	}
	if f.Catalog != nil {
		t.Error("expected no catalog override")
	}
	if got := f.Cases[0].Reported["clinician_agreement"]; got != 0.79 {
		t.Errorf("reported metric = %v, want 0.79", got)
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":      `{"cases": [`,
		"missing id":  `{"cases": [{"expected": "pass"}]}`,
		"duplicate":   `{"cases": [{"id": "a", "expected": "pass"}, {"id": "a", "expected": "fail"}]}`,
		"bad verdict": `{"cases": [{"id": "a", "expected": "maybe"}]}`,
		"bad catalog": `{"catalog": {"metrics": []}, "cases": []}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFixture(writeFixture(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestToRequestDefaultsNames(t *testing.T) {
	c := FixtureCase{ID: "x", ModelOutputs: []float64{1, 2}, SurrogateOutputs: []float64{2, 1}}
	req := c.ToRequest()
	if req.Subject() != "model vs surrogate" {
		t.Fatalf("unexpected subject %q", req.Subject())
	}
}

func TestExportFixture(t *testing.T) {
	v := func(x float64) *float64 { return &x }
	reports := []audit.Report{
		{
			ID: "r1", Model: "vault-gbm", Surrogate: "vault-linear", Passed: true,
			Checks: []eval.Check{
				{Name: "fidelity_correlation", Value: v(0.97)},
				{Name: "explanation_stability", Value: v(0.9)},
				{Name: "clinician_agreement"},
			},
			CreatedAt: time.Now(),
		},
		{ID: "r2", Model: "vault-gbm", Surrogate: "vault-tree", Passed: false},
	}

	f := ExportFixture("ledger export", reports, eval.DefaultCatalog())

	want := Fixture{
		Description: "ledger export",
		Cases: []FixtureCase{
			{
				ID: "r1", Model: "vault-gbm", Surrogate: "vault-linear",
				ModelOutputs: []float64{}, SurrogateOutputs: []float64{},
				Reported: map[string]float64{"explanation_stability": 0.9},
				Expected: logging.DecisionPass,
			},
			{
				ID: "r2", Model: "vault-gbm", Surrogate: "vault-tree",
				ModelOutputs: []float64{}, SurrogateOutputs: []float64{},
				Expected: logging.DecisionFail,
			},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("exported fixture should validate: %v", err)
	}
}
