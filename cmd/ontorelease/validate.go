package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/ontorelease/internal/app"
	"github.com/yungbote/ontorelease/internal/diagnostics"
	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/jobs/steps"
)

func newValidateCommand(flags *rootFlags) *cobra.Command {
	var scriptPath, dir string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a local checkout of an ontology repository",
		Long: `Runs the release validation step over a local checkout without a
database or any remote service. Exits with status 1 when errors are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, _, err := loadScript(scriptPath)
			if script == nil {
				return &ExitError{Code: 1, Err: err}
			}
			log, err := flags.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			root, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			workDir, err := os.MkdirTemp("", "ontorelease-validate-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(workDir)

			rctx := &runtime.Context{
				Ctx:        cmd.Context(),
				Script:     script,
				Args:       map[string]any{},
				Log:        log.With("command", "validate"),
				WorkDir:    workDir,
				SourceRoot: root,
				Services:   &runtime.Services{Policy: app.PolicyFromEnv()},
			}
			res, data, err := steps.Validate(rctx)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Result diagnostics.Result   `json:"result"`
					Data   steps.ValidationData `json:"data"`
				}{res, data}); err != nil {
					return err
				}
			} else {
				printResult(cmd, res, data)
			}
			if res.HasErrors() {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to the release script JSON")
	cmd.Flags().StringVar(&dir, "dir", ".", "repository checkout holding the source sheets")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnostics as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, res diagnostics.Result, data steps.ValidationData) {
	out := cmd.OutOrStdout()
	for _, u := range data.Units {
		fmt.Fprintf(out, "%-24s %5d terms  %3d errors  %3d warnings\n", u.Unit, u.Terms, u.Errors, u.Warnings)
	}
	for _, d := range res.All() {
		fmt.Fprintln(out, d.String())
	}
	fmt.Fprintf(out, "%d errors, %d warnings\n", len(res.Errors), len(res.Warnings))
}
