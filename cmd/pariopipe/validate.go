package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/budget"
	"github.com/pario-ai/pariopipe/pkg/monitor"
	"github.com/pario-ai/pariopipe/pkg/pricing"
	"github.com/pario-ai/pariopipe/pkg/validation"
)

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the pipeline self check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.registry.Config()

			// The cost monitor check records a test call; keep it off the
			// project's usage store.
			table, err := pricing.FromConfig(cfg)
			if err != nil {
				return err
			}
			m, err := monitor.New(monitor.Options{
				Pricing: table,
				Policy:  budget.FromConfig(cfg.Monitor),
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			rep := validation.Run(cmd.Context(), validation.Deps{
				Registry:    a.registry,
				Monitor:     m,
				ProjectRoot: a.root,
				Logger:      a.logger,
			})

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CHECK\tRESULT\tTIME\tDETAIL")
				for _, c := range rep.Checks {
					result, detail := "PASS", strings.Join(c.Messages, "; ")
					if !c.Passed {
						result, detail = "FAIL", c.Error
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, result, c.Duration.Round(time.Microsecond), detail)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Printf("\n%d passed, %d failed\n", rep.Passed, rep.Failed)
			}

			if !rep.OK() {
				return fmt.Errorf("validation failed: %d of %d checks", rep.Failed, len(rep.Checks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
