package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Catalog     *eval.Catalog `json:"catalog,omitempty"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureCase is one prediction pair with the verdict it should produce.
type FixtureCase struct {
	ID               string             `json:"id"`
	Model            string             `json:"model,omitempty"`
	Surrogate        string             `json:"surrogate,omitempty"`
	ModelOutputs     []float64          `json:"model_outputs"`
	SurrogateOutputs []float64          `json:"surrogate_outputs"`
	Reported         map[string]float64 `json:"reported,omitempty"`
	Expected         string             `json:"expected"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks case IDs are unique and expected verdicts are known.
func (f *Fixture) Validate() error {
	if f.Catalog != nil {
		if err := f.Catalog.Validate(); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		if c.ID == "" {
			return fmt.Errorf("case %d: missing id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("case %s: duplicate id", c.ID)
		}
		seen[c.ID] = true
		switch c.Expected {
		case logging.DecisionPass, logging.DecisionFail, logging.DecisionInvalidInput, logging.DecisionDegenerateInput:
		default:
			return fmt.Errorf("case %s: unknown expected verdict %q", c.ID, c.Expected)
		}
	}
	return nil
}

// CatalogOrDefault returns the fixture's catalog override or the default catalog.
func (f *Fixture) CatalogOrDefault() eval.Catalog {
	if f.Catalog != nil {
		return *f.Catalog
	}
	return eval.DefaultCatalog()
}

// ToRequest converts a FixtureCase to an audit request.
func (c *FixtureCase) ToRequest() audit.Request {
	model, surrogate := c.Model, c.Surrogate
	if model == "" {
		model = "model"
	}
	if surrogate == "" {
		surrogate = "surrogate"
	}
	return audit.Request{
		Model:            model,
		Surrogate:        surrogate,
		ModelOutputs:     c.ModelOutputs,
		SurrogateOutputs: c.SurrogateOutputs,
		Reported:         c.Reported,
	}
}

// #endregion fixture-loader

// #region fixture-export

// ExportFixture builds a fixture skeleton from stored reports: each case keeps
// the report's verdict and reported metrics. The ledger does not store the
// prediction pairs, so output slices are left empty for the caller to fill.
func ExportFixture(description string, reports []audit.Report, catalog eval.Catalog) Fixture {
	f := Fixture{Description: description, Cases: make([]FixtureCase, 0, len(reports))}
	for _, r := range reports {
		reported := make(map[string]float64)
		for name, v := range r.Values() {
			if m, ok := catalog.Lookup(name); ok && m.Source == eval.SourceReported {
				reported[name] = v
			}
		}
		if len(reported) == 0 {
			reported = nil
		}
		expected := logging.DecisionPass
		if !r.Passed {
			expected = logging.DecisionFail
		}
		f.Cases = append(f.Cases, FixtureCase{
			ID:               r.ID,
			Model:            r.Model,
			Surrogate:        r.Surrogate,
			ModelOutputs:     []float64{},
			SurrogateOutputs: []float64{},
			Reported:         reported,
			Expected:         expected,
		})
	}
	return f
}

// #endregion fixture-export
