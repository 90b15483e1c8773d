package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type rootFlags struct {
	logMode string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "ontorelease",
		Short:         "Validate, build and publish spreadsheet-authored ontologies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logMode, "log-mode", envOr("LOG_MODE", "development"), "logger mode: development, production or test")

	root.AddCommand(
		newServeCommand(flags),
		newValidateCommand(flags),
		newOrderCommand(),
		newScriptCommand(),
	)
	return root
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func (f *rootFlags) logger() (*logger.Logger, error) {
	return logger.New(f.logMode)
}
