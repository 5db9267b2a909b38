package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/replay"
)

// #region replay

func newReplayCmd(a *app) *cobra.Command {
	var (
		fixturePath string
		workers     int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-audit a fixture in memory and compare verdicts against expectations",
		Long:  "Runs every fixture case through the auditor without touching the ledger.\nExits 1 if any case diverges from its expected verdict.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return usageError("load fixture: %v", err)
			}
			if workers < 1 {
				workers = a.cfg.ReplayWorkers
			}

			results, err := replay.Replay(cmd.Context(), f, workers, a.logger)
			if err != nil {
				return err
			}
			if printComparison(a.out, results) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent cases (default from config)")
	cmd.MarkFlagRequired("fixture")
	return cmd
}

// printComparison outputs a comparison table and returns the divergence count.
func printComparison(w io.Writer, results []replay.Result) int {
	fmt.Fprintf(w, "%-20s| %-17s| %-17s| %s\n", "Case", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-20s+%-18s+%-18s+%s\n",
		"--------------------", "------------------", "------------------", "------")

	for _, r := range results {
		match := "DIFF"
		if r.Match() {
			match = "OK"
		}
		fmt.Fprintf(w, "%-20s| %-17s| %-17s| %s\n", truncate(r.CaseID, 20), r.Expected, r.Outcome, match)
	}

	s := replay.Summarize(results)
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge (%d pass, %d fail, %d invalid, %d degenerate)\n",
		s.Total, s.Matches, s.Diverged, s.Passes, s.Fails, s.Invalid, s.Degenerate)
	return s.Diverged
}

// #endregion replay

// #region export

func newExportCmd(a *app) *cobra.Command {
	var (
		last        int
		outPath     string
		description string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a replay fixture skeleton from recent ledger reports",
		Long: "Each case carries the stored verdict and reported metrics. The ledger does not\n" +
			"keep prediction pairs, so model_outputs and surrogate_outputs must be filled in\n" +
			"before the fixture can be replayed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if last < 1 {
				return usageError("--last must be >= 1, got %d", last)
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

			reports, err := st.ListReports(cmd.Context(), last)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				return usageError("no reports in ledger %s", a.cfg.DB)
			}
			if description == "" {
				description = fmt.Sprintf("exported from %s (%d reports)", a.cfg.DB, len(reports))
			}

			f := replay.ExportFixture(description, reports, catalog)
			data, err := json.MarshalIndent(f, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal fixture: %w", err)
			}
			data = append(data, '\n')

			if outPath == "" {
				_, err = a.out.Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d cases to %s\n", len(f.Cases), outPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 50, "number of recent reports to export")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	return cmd
}

// #endregion export
