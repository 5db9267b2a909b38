package eval

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// #region catalog-loading
// DefaultCatalog returns the built-in fidelity targets.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file. An empty path yields the default.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects empty catalogs, duplicate names and unknown enum values.
func (c Catalog) Validate() error {
	if len(c.Metrics) == 0 {
		return fmt.Errorf("catalog has no metrics")
	}
	seen := make(map[string]bool, len(c.Metrics))
	for i, m := range c.Metrics {
		if m.Name == "" {
			return fmt.Errorf("metric %d: missing name", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("metric %s: duplicate name", m.Name)
		}
		seen[m.Name] = true
		if m.Direction != DirectionMin && m.Direction != DirectionMax {
			return fmt.Errorf("metric %s: unknown direction %q", m.Name, m.Direction)
		}
		if m.Source != SourceComputed && m.Source != SourceReported {
			return fmt.Errorf("metric %s: unknown source %q", m.Name, m.Source)
		}
	}
	return nil
}

// Lookup returns the metric with the given name.
func (c Catalog) Lookup(name string) (Metric, bool) {
	for _, m := range c.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// #endregion catalog-loading

// #region harness
// Harness checks metric values against a catalog.
type Harness struct {
	catalog Catalog
}

// NewHarness creates a harness over the given catalog.
func NewHarness(catalog Catalog) *Harness {
	return &Harness{catalog: catalog}
}

// Catalog returns the catalog the harness checks against.
func (h *Harness) Catalog() Catalog {
	return h.catalog
}

// Run evaluates every catalog metric in order. A required metric that is missing
// or fails its target fails the result; optional failures are recorded only.
func (h *Harness) Run(values map[string]float64) Result {
	checks := make([]Check, 0, len(h.catalog.Metrics))
	passed := true
	var failReasons []string

	for _, m := range h.catalog.Metrics {
		chk := Check{
			Name:      m.Name,
			Target:    m.Target,
			Direction: m.Direction,
			Required:  m.Required,
		}

		v, ok := values[m.Name]
		switch {
		case !ok:
			chk.Status = StatusMissing
			if m.Required {
				failReasons = append(failReasons, fmt.Sprintf("%s missing", m.Name))
			}
		case m.Meets(v):
			chk.Value = &v
			chk.Status = StatusPass
		default:
			chk.Value = &v
			chk.Status = StatusFail
			if m.Required {
				failReasons = append(failReasons, describeMiss(m, v))
			}
		}
		checks = append(checks, chk)
	}

	if len(failReasons) > 0 {
		passed = false
	}

	reason := "all required checks passed"
	if !passed {
		reason = fmt.Sprintf("audit failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("audit failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed: passed,
		Checks: checks,
		Reason: reason,
	}
}

// Meets reports whether v satisfies the metric's target.
func (m Metric) Meets(v float64) bool {
	if m.Direction == DirectionMax {
		return v <= m.Target
	}
	return v >= m.Target
}

// #endregion harness

// #region helpers
func describeMiss(m Metric, v float64) string {
	if m.Direction == DirectionMax {
		return fmt.Sprintf("%s %.4f exceeds %.4f", m.Name, v, m.Target)
	}
	return fmt.Sprintf("%s %.4f below %.4f", m.Name, v, m.Target)
}

// #endregion helpers
