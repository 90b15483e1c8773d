package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/ontorelease/internal/app"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the release worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := flags.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := cmd.Context()
			application, err := app.New(ctx, log)
			if err != nil {
				log.Error("init app failed", "error", err)
				log.Sync()
				return &ExitError{Code: 1, Err: err}
			}
			defer application.Close()

			application.Start(ctx)
			if err := application.Run(ctx); err != nil {
				log.Error("server stopped", "error", err)
				return &ExitError{Code: 1, Err: err}
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}
