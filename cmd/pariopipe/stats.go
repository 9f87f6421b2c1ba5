package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/tracker"
)

func newStatsCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show persisted usage by stage and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.registry.Config()
			if !cfg.Monitor.Persist {
				fmt.Println("Usage persistence is disabled.")
				return nil
			}

			tr, err := tracker.New(cfg.Monitor.DBPath(a.root))
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			since := time.Now().AddDate(0, 0, -days)
			summaries, err := tr.Summary(cmd.Context(), since)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tMODEL\tCALLS\tINPUT\tOUTPUT\tCOST")
			var total float64
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t$%.6f\n",
					defaultStr(s.Stage, "(none)"), s.Model, s.Calls, s.InputTokens, s.OutputTokens, s.Cost)
				total += s.Cost
			}
			fmt.Fprintf(w, "\t\t\t\tTOTAL\t$%.6f\n", total)
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "look-back period in days")
	return cmd
}
