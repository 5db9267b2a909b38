package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/dataset"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/rpc"
)

// pairFlags are shared by commands that read a prediction pair from disk.
type pairFlags struct {
	path         string
	modelCol     string
	surrogateCol string
}

func (p *pairFlags) register(cmd *cobra.Command) {
	def := dataset.DefaultColumns()
	cmd.Flags().StringVar(&p.path, "pair", "", "prediction pair file (.csv or .json)")
	cmd.Flags().StringVar(&p.modelCol, "model-col", def.Model, "CSV column holding model outputs")
	cmd.Flags().StringVar(&p.surrogateCol, "surrogate-col", def.Surrogate, "CSV column holding surrogate outputs")
	cmd.MarkFlagRequired("pair")
}

func (p *pairFlags) load() (dataset.Pair, error) {
	pair, err := dataset.Load(p.path, dataset.Columns{Model: p.modelCol, Surrogate: p.surrogateCol})
	if err != nil {
		return dataset.Pair{}, usageError("%v", err)
	}
	return pair, nil
}

// #region score

func newScoreCmd(a *app) *cobra.Command {
	var (
		pf     pairFlags
		format string
		remote string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute correlation and R² for a prediction pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			pair, err := pf.load()
			if err != nil {
				return err
			}

			var res fidelity.Result
			if remote != "" {
				res, err = scoreRemote(cmd.Context(), remote, pair)
			} else {
				res, err = fidelity.ComputeFidelity(pair.ModelOutputs, pair.SurrogateOutputs)
			}
			if err != nil {
				a.logger.Debug("score rejected", zap.String("kind", fidelity.Kind(err)), zap.Error(err))
				return err
			}

			if format == formatText {
				fmt.Fprintf(a.out, "correlation: %.6f\nr2:          %.6f\n", res.Correlation, res.R2)
				return nil
			}
			return encode(a.out, format, res)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	cmd.Flags().StringVar(&remote, "remote", "", "score through a fidelity gRPC server at this address")
	return cmd
}

func scoreRemote(ctx context.Context, addr string, pair dataset.Pair) (fidelity.Result, error) {
	client, err := rpc.NewClient(addr)
	if err != nil {
		return fidelity.Result{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return client.Score(ctx, pair.ModelOutputs, pair.SurrogateOutputs)
}

// #endregion score

// #region audit

func newAuditCmd(a *app) *cobra.Command {
	var (
		pf            pairFlags
		format        string
		modelName     string
		surrogateName string
		reported      []string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Score a pair, check it against the metric catalog and record the report",
		Long: "Scores the pair, checks every catalog metric and stores the report in the ledger.\n" +
			"Exits 1 when a required metric misses its target.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			extra, err := parseReported(reported)
			if err != nil {
				return err
			}
			pair, err := pf.load()
			if err != nil {
				return err
			}
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			auditor := audit.NewAuditor(catalog, st, a.logger)
			rep, err := auditor.Run(cmd.Context(), audit.Request{
				Model:            modelName,
				Surrogate:        surrogateName,
				ModelOutputs:     pair.ModelOutputs,
				SurrogateOutputs: pair.SurrogateOutputs,
				Reported:         extra,
			})
			if err != nil {
				return err
			}

			if format == formatText {
				printReport(a.out, rep)
			} else if err := encode(a.out, format, rep); err != nil {
				return err
			}
			if !rep.Passed {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	cmd.Flags().StringVar(&modelName, "model-name", "model", "name of the black-box model")
	cmd.Flags().StringVar(&surrogateName, "surrogate-name", "surrogate", "name of the surrogate")
	cmd.Flags().StringArrayVar(&reported, "reported", nil, "externally measured metric as name=value (repeatable)")
	return cmd
}

// parseReported turns name=value flags into a metric map.
func parseReported(kvs []string) (map[string]float64, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, usageError("--reported %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, usageError("--reported %q: %v", kv, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, usageError("--reported %q: value must be finite", kv)
		}
		out[name] = v
	}
	return out, nil
}

// #endregion audit
