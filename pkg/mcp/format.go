package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pario-ai/pariopipe/pkg/models"
)

// formatResolved formats resolved operation configs as a text table.
func formatResolved(cfgs []models.ResolvedConfig) string {
	if len(cfgs) == 0 {
		return "No operations found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s %-12s %-28s %6s %7s %6s %6s  %s\n",
		"Operation", "Stage", "Model", "Temp", "Tokens", "TopP", "Batch", "Fallbacks")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, c := range cfgs {
		fmt.Fprintf(&b, "%-22s %-12s %-28s %6.2f %7d %6.2f %6d  %s\n",
			c.Operation, c.Stage, c.Model,
			c.Params.Temperature, c.Params.MaxTokens, c.Params.TopP, c.Params.BatchSize,
			formatChain(c.Fallbacks))
	}
	return b.String()
}

func formatChain(chain []string) string {
	if len(chain) == 0 {
		return "(none)"
	}
	return strings.Join(chain, " -> ")
}

// formatReport formats a daily report with per-stage and per-model breakdowns.
func formatReport(rep models.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date:       %s\n", rep.Date)
	fmt.Fprintf(&b, "Total cost: $%.6f\n", rep.TotalCost)
	fmt.Fprintf(&b, "Calls:      %d\n", rep.Calls)
	fmt.Fprintf(&b, "Tokens:     %d in / %d out\n", rep.InputTokens, rep.OutputTokens)
	if rep.Calls == 0 {
		b.WriteString("\nNo usage recorded today.\n")
		return b.String()
	}
	writeBreakdown(&b, "Stage", rep.ByStage)
	writeBreakdown(&b, "Operation", rep.ByOperation)
	writeBreakdown(&b, "Model", rep.ByModel)
	if len(rep.Unpriced) > 0 {
		fmt.Fprintf(&b, "\nUnpriced models: %s\n", strings.Join(rep.Unpriced, ", "))
	}
	return b.String()
}

func writeBreakdown(b *strings.Builder, label string, m map[string]models.Breakdown) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "\n%-28s %8s %10s %10s %12s\n", label, "Calls", "Input", "Output", "Cost")
	b.WriteString(strings.Repeat("-", 72) + "\n")
	for _, k := range keys {
		v := m[k]
		name := k
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(b, "%-28s %8d %10d %10d %12.6f\n", name, v.Calls, v.InputTokens, v.OutputTokens, v.Cost)
	}
}

// formatBudgetStatus formats the downgrade decision.
func formatBudgetStatus(st models.BudgetStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metric:     %s", st.Metric)
	if st.Metric == models.MetricRollingWindow {
		fmt.Fprintf(&b, " (%s)", st.Window)
	}
	b.WriteString("\n")
	if st.Threshold <= 0 {
		b.WriteString("Threshold:  disabled\n")
	} else {
		fmt.Fprintf(&b, "Threshold:  $%.4f\n", st.Threshold)
	}
	fmt.Fprintf(&b, "Used:       $%.6f\n", st.Used)
	fmt.Fprintf(&b, "Remaining:  $%.6f\n", st.Remaining)
	fmt.Fprintf(&b, "Usage:      %.1f%%\n", st.Percentage)
	if st.Downgrade {
		b.WriteString("Downgrade:  ACTIVE (stages use their first fallback model)\n")
	} else {
		b.WriteString("Downgrade:  inactive\n")
	}
	return b.String()
}

// formatSummary formats persisted usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-28s %8s %10s %10s %12s\n",
		"Stage", "Model", "Calls", "Input", "Output", "Cost")
	b.WriteString(strings.Repeat("-", 87) + "\n")
	for _, r := range rows {
		stage := r.Stage
		if stage == "" {
			stage = "(none)"
		}
		fmt.Fprintf(&b, "%-14s %-28s %8d %10d %10d %12.6f\n",
			stage, r.Model, r.Calls, r.InputTokens, r.OutputTokens, r.Cost)
	}
	return b.String()
}
