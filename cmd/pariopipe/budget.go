package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/monitor"
)

func newBudgetCmd(a *app) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show spend against the downgrade threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := monitor.Get(a.root)
			defer func() { _ = m.Close() }()

			st := m.BudgetStatus()
			printBudget(st)

			if check {
				return m.Policy().Check(m.Records(), time.Now())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "exit non-zero when the threshold is reached")
	return cmd
}

func printBudget(st models.BudgetStatus) {
	metric := string(st.Metric)
	if st.Metric == models.MetricRollingWindow {
		metric = fmt.Sprintf("%s (%s)", st.Metric, st.Window)
	}
	fmt.Printf("METRIC     %s\n", metric)
	if st.Threshold > 0 {
		fmt.Printf("THRESHOLD  $%.4f\n", st.Threshold)
	} else {
		fmt.Println("THRESHOLD  disabled")
	}
	fmt.Printf("USED       $%.6f (%.1f%%)\n", st.Used, st.Percentage)
	fmt.Printf("REMAINING  $%.6f\n", st.Remaining)
	if st.Downgrade {
		fmt.Println("DOWNGRADE  active")
	} else {
		fmt.Println("DOWNGRADE  inactive")
	}
}
