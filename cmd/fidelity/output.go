package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return usageError("unknown --format %q (want text, json or yaml)", f)
}

// encode writes v as JSON or YAML. Text rendering is left to the caller.
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("encode: unsupported format %q", format)
}

func verdict(passed bool) string {
	if passed {
		return logging.DecisionPass
	}
	return logging.DecisionFail
}

// printReport renders one report with its check table.
func printReport(w io.Writer, r audit.Report) {
	fmt.Fprintf(w, "Report:      %s\n", r.ID)
	fmt.Fprintf(w, "Subject:     %s vs %s (n=%d)\n", r.Model, r.Surrogate, r.N)
	fmt.Fprintf(w, "Created:     %s\n", r.CreatedAt.Format(logging.TimeFormat))
	fmt.Fprintf(w, "Correlation: %.4f\n", r.Fidelity.Correlation)
	fmt.Fprintf(w, "R²:          %.4f\n", r.Fidelity.R2)
	fmt.Fprintf(w, "MAE:         %.4f\n", r.MAE)
	fmt.Fprintf(w, "Verdict:     %s\n", verdict(r.Passed))
	if r.Reason != "" {
		fmt.Fprintf(w, "Reason:      %s\n", r.Reason)
	}

	fmt.Fprintf(w, "\n%-24s| %-10s| %-4s| %-8s| %s\n", "Metric", "Value", "Dir", "Target", "Status")
	fmt.Fprintf(w, "%-24s+%-11s+%-5s+%-9s+%s\n",
		"------------------------", "-----------", "-----", "---------", "--------")
	for _, c := range r.Checks {
		value := "-"
		if c.Value != nil {
			value = fmt.Sprintf("%.4f", *c.Value)
		}
		status := string(c.Status)
		if c.Required {
			status += " (required)"
		}
		fmt.Fprintf(w, "%-24s| %-10s| %-4s| %-8.4f| %s\n", c.Name, value, c.Direction, c.Target, status)
	}
}

func printReportList(w io.Writer, reports []audit.Report) {
	fmt.Fprintf(w, "%-36s  %-30s  %-20s  %5s  %8s  %8s  %s\n",
		"ID", "Created", "Subject", "N", "r", "R²", "Verdict")
	for _, r := range reports {
		fmt.Fprintf(w, "%-36s  %-30s  %-20s  %5d  %8.4f  %8.4f  %s\n",
			r.ID, r.CreatedAt.Format(logging.TimeFormat), truncate(r.Model+"/"+r.Surrogate, 20),
			r.N, r.Fidelity.Correlation, r.Fidelity.R2, verdict(r.Passed))
	}
}

func printDeltas(w io.Writer, before, after audit.Report, deltas []audit.Delta) {
	fmt.Fprintf(w, "Before: %s (%s)\nAfter:  %s (%s)\n\n", before.ID, verdict(before.Passed), after.ID, verdict(after.Passed))
	fmt.Fprintf(w, "%-24s| %-10s| %-10s| %-10s| %-8s| %s\n", "Metric", "Before", "After", "Change", "Target", "Improved")
	fmt.Fprintf(w, "%-24s+%-11s+%-11s+%-11s+%-9s+%s\n",
		"------------------------", "-----------", "-----------", "-----------", "---------", "---------")
	improved := 0
	for _, d := range deltas {
		mark := "no"
		if d.Improved {
			mark = "yes"
			improved++
		}
		fmt.Fprintf(w, "%-24s| %-10.4f| %-10.4f| %+-10.4f| %-8.4f| %s\n",
			d.Name, d.Before, d.After, d.Change, d.Target, mark)
	}
	fmt.Fprintf(w, "\nSummary: %d metrics, %d improved\n", len(deltas), improved)
}

func printDecisions(w io.Writer, entries []logging.AuditEntry) {
	fmt.Fprintf(w, "%-30s  %-18s  %-36s  %-30s  %s\n", "Created", "Decision", "Report", "Subject", "Reason")
	for _, e := range entries {
		report := e.ReportID
		if report == "" {
			report = "-"
		}
		fmt.Fprintf(w, "%-30s  %-18s  %-36s  %-30s  %s\n",
			e.CreatedAt.Format(logging.TimeFormat), e.Decision, report, truncate(e.Subject, 30), e.Reason)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
