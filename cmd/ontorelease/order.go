package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/ontorelease/internal/buildorder"
)

func newOrderCommand() *cobra.Command {
	var scriptPath string
	var waves bool
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the build units in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, order, err := loadScript(scriptPath)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			out := cmd.OutOrStdout()
			if !waves {
				for _, name := range order {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			for i, wave := range buildorder.Waves(order, script.Files) {
				fmt.Fprintf(out, "%d: %s\n", i+1, strings.Join(wave, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to the release script JSON")
	cmd.Flags().BoolVar(&waves, "waves", false, "group units that can build in parallel")
	return cmd
}
