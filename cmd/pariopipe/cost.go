package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/monitor"
)

func newCostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Record model usage and show today's spend",
	}
	cmd.AddCommand(newCostRecordCmd(a), newCostReportCmd(a))
	return cmd
}

func newCostRecordCmd(a *app) *cobra.Command {
	var (
		model        string
		inputTokens  int
		outputTokens int
		stage        string
		operation    string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the token usage of one model call",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := monitor.Get(a.root)
			defer func() { _ = m.Close() }()

			cost, err := m.RecordUsage(cmd.Context(), model, inputTokens, outputTokens, stage, operation)
			if err != nil {
				return err
			}
			fmt.Printf("recorded %s: %d in / %d out, $%.6f\n", model, inputTokens, outputTokens, cost)
			if m.ShouldAutoDowngrade() {
				fmt.Println("cost threshold reached: stages will use their fallback models")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model that served the call")
	cmd.Flags().IntVar(&inputTokens, "input", 0, "input tokens")
	cmd.Flags().IntVar(&outputTokens, "output", 0, "output tokens")
	cmd.Flags().StringVar(&stage, "stage", "", "pipeline stage")
	cmd.Flags().StringVar(&operation, "operation", "", "pipeline operation")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newCostReportCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show today's spend by stage, operation and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := monitor.Get(a.root)
			defer func() { _ = m.Close() }()

			rep := m.GetDailyReport()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printReport(rep)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printReport(rep models.DailyReport) error {
	fmt.Printf("%s  total $%.6f  calls %d  tokens %d in / %d out\n",
		rep.Date, rep.TotalCost, rep.Calls, rep.InputTokens, rep.OutputTokens)
	if rep.Calls == 0 {
		fmt.Println("No usage recorded today.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, sec := range []struct {
		label string
		rows  map[string]models.Breakdown
	}{
		{"STAGE", rep.ByStage},
		{"OPERATION", rep.ByOperation},
		{"MODEL", rep.ByModel},
	} {
		fmt.Fprintf(w, "\n%s\tCALLS\tINPUT\tOUTPUT\tCOST\n", sec.label)
		keys := make([]string, 0, len(sec.rows))
		for k := range sec.rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b := sec.rows[k]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t$%.6f\n", defaultStr(k, "(none)"), b.Calls, b.InputTokens, b.OutputTokens, b.Cost)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(rep.Unpriced) > 0 {
		fmt.Printf("\nunpriced models (recorded at $0): %v\n", rep.Unpriced)
	}
	return nil
}
