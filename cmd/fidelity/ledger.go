package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/store"
)

// #region history

func newHistoryCmd(a *app) *cobra.Command {
	var (
		last   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent audit reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if last < 1 {
				return usageError("--last must be >= 1, got %d", last)
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
			if format != formatText {
				if reports == nil {
					reports = []audit.Report{}
				}
				return encode(a.out, format, reports)
			}
			printReportList(a.out, reports)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "number of reports to show")
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

// #endregion history

// #region show

func newShowCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show one audit report with its metric checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := getReport(cmd, st, args[0])
			if err != nil {
				return err
			}
			if format != formatText {
				return encode(a.out, format, rep)
			}
			printReport(a.out, rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

func getReport(cmd *cobra.Command, st *store.Store, id string) (audit.Report, error) {
	rep, err := st.GetReport(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return audit.Report{}, usageError("report %s not found", id)
	}
	return rep, err
}

// #endregion show

// #region compare

func newCompareCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "compare <before-id> <after-id>",
		Short: "Compare two audit reports metric by metric",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			before, err := getReport(cmd, st, args[0])
			if err != nil {
				return err
			}
			after, err := getReport(cmd, st, args[1])
			if err != nil {
				return err
			}

			deltas := audit.Compare(before, after)
			if format != formatText {
				if deltas == nil {
					deltas = []audit.Delta{}
				}
				return encode(a.out, format, deltas)
			}
			printDeltas(a.out, before, after, deltas)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

// #endregion compare

// #region decisions

func newDecisionsCmd(a *app) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent audit log entries, including rejected inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if last < 1 {
				return usageError("--last must be >= 1, got %d", last)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListDecisions(cmd.Context(), last)
			if err != nil {
				return err
			}
			printDecisions(a.out, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "number of entries to show")
	return cmd
}

// #endregion decisions
