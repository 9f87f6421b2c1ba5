package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/pario-ai/pariopipe/pkg/resolver"
)

func newResolveCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve [operation]",
		Short: "Show the model and parameters an operation resolves to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := resolver.New(a.registry)

			ops := models.Operations()
			if len(args) == 1 {
				ops = []models.Operation{models.Operation(args[0])}
			}

			cfgs := make([]models.ResolvedConfig, 0, len(ops))
			for _, op := range ops {
				c, err := res.LoadOperationConfig(string(op))
				if err != nil {
					return err
				}
				cfgs = append(cfgs, c)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cfgs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tSTAGE\tMODEL\tTEMP\tMAX TOKENS\tTOP P\tBATCH\tFALLBACKS")
			for _, c := range cfgs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%.2f\t%d\t%s\n",
					c.Operation, c.Stage, c.Model,
					c.Params.Temperature, c.Params.MaxTokens, c.Params.TopP, c.Params.BatchSize,
					defaultStr(strings.Join(c.Fallbacks, ", "), "-"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newFallbacksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fallbacks [model...]",
		Short: "Show fallback chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = a.registry.ChainedModels()
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tFALLBACKS")
			for _, m := range args {
				fmt.Fprintf(w, "%s\t%s\n", m, defaultStr(strings.Join(a.registry.GetFallbackModels(m), " -> "), "-"))
			}
			return w.Flush()
		},
	}
}
