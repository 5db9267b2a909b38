package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

// #region types
// Result captures the outcome of replaying one fixture case.
type Result struct {
	CaseID   string
	Expected string
	Outcome  string // "pass" | "fail" | "invalid_input" | "degenerate_input"
	Reason   string
	Report   *audit.Report // nil when scoring was rejected
}

// Match reports whether the replayed outcome equals the expected verdict.
func (r Result) Match() bool {
	return r.Outcome == r.Expected
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total      int
	Passes     int
	Fails      int
	Invalid    int
	Degenerate int
	Matches    int
	Diverged   int
}

// #endregion types

// #region replay
// Replay audits every case in memory, at most workers at a time, and returns
// results in case order. Nothing is persisted.
func Replay(ctx context.Context, f *Fixture, workers int, logger *zap.Logger) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	auditor := audit.NewAuditor(f.CatalogOrDefault(), nil, logger)
	results := make([]Result, len(f.Cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range f.Cases {
		c := &f.Cases[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runCase(gctx, auditor, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return results, nil
}

func runCase(ctx context.Context, auditor *audit.Auditor, c *FixtureCase) Result {
	res := Result{CaseID: c.ID, Expected: c.Expected}

	rep, err := auditor.Run(ctx, c.ToRequest())
	if err != nil {
		res.Outcome = fidelity.Kind(err)
		res.Reason = err.Error()
		return res
	}

	res.Outcome = logging.DecisionFail
	if rep.Passed {
		res.Outcome = logging.DecisionPass
	}
	res.Reason = rep.Reason
	res.Report = &rep
	return res
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case logging.DecisionPass:
			s.Passes++
		case logging.DecisionFail:
			s.Fails++
		case logging.DecisionInvalidInput:
			s.Invalid++
		case logging.DecisionDegenerateInput:
			s.Degenerate++
		}
		if r.Match() {
			s.Matches++
		} else {
			s.Diverged++
		}
	}
	return s
}

// #endregion replay
