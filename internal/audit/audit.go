package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

// #region auditor
// Auditor scores prediction pairs, checks them against a catalog and records
// the outcome.
type Auditor struct {
	harness *eval.Harness
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditor creates an auditor. sink may be nil for dry runs; logger may be nil.
func NewAuditor(catalog eval.Catalog, sink Sink, logger *zap.Logger) *Auditor {
	return &Auditor{
		harness: eval.NewHarness(catalog),
		sink:    sink,
		logger:  logging.OrNop(logger),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Catalog returns the catalog reports are checked against.
func (a *Auditor) Catalog() eval.Catalog {
	return a.harness.Catalog()
}

// #endregion auditor

// #region run
// Run audits one pair. Scoring errors are recorded in the audit log and
// returned wrapped; they still match fidelity.ErrInvalidInput and
// fidelity.ErrDegenerateInput under errors.Is.
func (a *Auditor) Run(ctx context.Context, req Request) (Report, error) {
	log := a.logger.With(zap.String("subject", req.Subject()), zap.Int("n", len(req.ModelOutputs)))

	res, err := fidelity.ComputeFidelity(req.ModelOutputs, req.SurrogateOutputs)
	var mae float64
	if err == nil {
		mae, err = fidelity.MeanAbsoluteError(req.ModelOutputs, req.SurrogateOutputs)
	}
	if err == nil {
		err = checkReported(req.Reported)
	}
	if err != nil {
		kind := fidelity.Kind(err)
		log.Warn("fidelity scoring rejected input", zap.String("kind", kind), zap.Error(err))
		if a.sink != nil {
			if lerr := a.sink.LogDecision(ctx, "", req.Subject(), kind, err.Error()); lerr != nil {
				log.Error("audit log write failed", zap.Error(lerr))
			}
		}
		return Report{}, fmt.Errorf("score %s: %w", req.Subject(), err)
	}

	values := make(map[string]float64, len(req.Reported)+3)
	for k, v := range req.Reported {
		values[k] = v
	}
	values["fidelity_correlation"] = res.Correlation
	values["fidelity_r2"] = res.R2
	values["mean_abs_deviation"] = mae

	result := a.harness.Run(values)

	report := Report{
		ID:        uuid.New().String(),
		Model:     req.Model,
		Surrogate: req.Surrogate,
		N:         len(req.ModelOutputs),
		Fidelity:  res,
		MAE:       mae,
		Passed:    result.Passed,
		Checks:    result.Checks,
		Reason:    result.Reason,
		CreatedAt: a.now(),
	}

	log.Info("audit complete",
		zap.String("report_id", report.ID),
		zap.Float64("correlation", res.Correlation),
		zap.Float64("r2", res.R2),
		zap.Bool("passed", report.Passed),
	)

	if a.sink != nil {
		decision := logging.DecisionPass
		if !report.Passed {
			decision = logging.DecisionFail
		}
		if err := a.sink.RecordReport(ctx, report, req.Subject(), decision); err != nil {
			return Report{}, fmt.Errorf("record report: %w", err)
		}
	}

	return report, nil
}

// checkReported rejects non-finite reported metric values.
func checkReported(reported map[string]float64) error {
	for name, v := range reported {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &fidelity.InvalidInputError{Reason: fmt.Sprintf("reported metric %s is not finite", name)}
		}
	}
	return nil
}

// #endregion run

// #region compare
// Compare lines up two reports metric by metric in catalog order. Metrics
// missing a value on either side are skipped.
func Compare(before, after Report) []Delta {
	bv := before.Values()
	av := after.Values()

	var deltas []Delta
	for _, c := range after.Checks {
		b, okB := bv[c.Name]
		a, okA := av[c.Name]
		if !okB || !okA {
			continue
		}
		improved := a > b
		if c.Direction == eval.DirectionMax {
			improved = a < b
		}
		deltas = append(deltas, Delta{
			Name:      c.Name,
			Before:    b,
			After:     a,
			Change:    a - b,
			Target:    c.Target,
			Direction: c.Direction,
			Improved:  improved,
		})
	}
	return deltas
}

// #endregion compare
