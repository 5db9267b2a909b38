package audit

import (
	"context"
	"time"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
)

// #region request
// Request is one model/surrogate prediction pair to audit.
type Request struct {
	Model            string             `json:"model" yaml:"model"`
	Surrogate        string             `json:"surrogate" yaml:"surrogate"`
	ModelOutputs     []float64          `json:"model_outputs" yaml:"model_outputs"`
	SurrogateOutputs []float64          `json:"surrogate_outputs" yaml:"surrogate_outputs"`
	Reported         map[string]float64 `json:"reported,omitempty" yaml:"reported,omitempty"`
}

// Subject labels the pair for logs and the audit log.
func (r Request) Subject() string {
	return r.Model + " vs " + r.Surrogate
}

// #endregion request

// #region report
// Report is the persisted outcome of a successful scoring run.
type Report struct {
	ID        string          `json:"id" yaml:"id"`
	Model     string          `json:"model" yaml:"model"`
	Surrogate string          `json:"surrogate" yaml:"surrogate"`
	N         int             `json:"n" yaml:"n"`
	Fidelity  fidelity.Result `json:"fidelity" yaml:"fidelity"`
	MAE       float64         `json:"mean_abs_deviation" yaml:"mean_abs_deviation"`
	Passed    bool            `json:"passed" yaml:"passed"`
	Checks    []eval.Check    `json:"checks" yaml:"checks"`
	Reason    string          `json:"reason" yaml:"reason"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Values returns the report's checked metric values keyed by name.
func (r Report) Values() map[string]float64 {
	vals := make(map[string]float64, len(r.Checks))
	for _, c := range r.Checks {
		if c.Value != nil {
			vals[c.Name] = *c.Value
		}
	}
	return vals
}

// #endregion report

// #region delta
// Delta is one row of a before/after validation comparison.
type Delta struct {
	Name      string         `json:"name" yaml:"name"`
	Before    float64        `json:"before" yaml:"before"`
	After     float64        `json:"after" yaml:"after"`
	Change    float64        `json:"change" yaml:"change"`
	Target    float64        `json:"target" yaml:"target"`
	Direction eval.Direction `json:"direction" yaml:"direction"`
	Improved  bool           `json:"improved" yaml:"improved"`
}

// #endregion delta

// #region sink
// Sink persists reports and audit log entries. *store.Store implements it.
type Sink interface {
	// RecordReport stores r and its decision entry atomically.
	RecordReport(ctx context.Context, r Report, subject, decision string) error
	LogDecision(ctx context.Context, reportID, subject, decision, reason string) error
}

// #endregion sink
