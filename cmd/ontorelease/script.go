package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/ontorelease/internal/jobs/registry"
	"github.com/yungbote/ontorelease/internal/services"
)

func newScriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect release scripts",
	}

	var path string
	check := &cobra.Command{
		Use:   "check",
		Short: "Check a release script against the step registry and its unit graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, order, err := loadScript(path)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			if err := script.Validate(); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			reg, err := registry.Default()
			if err != nil {
				return err
			}
			if err := reg.Validate(script.StepNames()); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d steps, %d units (%v)\n", len(script.Steps), len(order), order)
			return nil
		},
	}
	check.Flags().StringVar(&path, "script", "", "path to the release script JSON")

	steps := &cobra.Command{
		Use:   "default-steps",
		Short: "Print the step list used for repositories without a stored script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(services.DefaultSteps(nil))
		},
	}

	cmd.AddCommand(check, steps)
	return cmd
}
