package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/pariopipe/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the pipeline configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			RunE: func(cmd *cobra.Command, args []string) error {
				if a.registry.Degraded() {
					fmt.Fprintf(os.Stderr, "# %s unavailable (%v), showing built-in defaults\n",
						a.registry.Source(), a.registry.LoadError())
				}
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				if err := enc.Encode(a.registry.Config()); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON Schema of the config file",
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := config.Schema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, string(data))
				return err
			},
		},
	)
	return cmd
}
