package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/portfolio-lease/internal/config"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "portfolio-lease",
		Short:         "Time-leased portfolio locks for hourly inspection work",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadDotEnv()
		},
	}
	root.AddCommand(
		newServeCommand(),
		newSweepCommand(),
		newMigrateCommand(),
		newTokenCommand(),
	)
	return root
}
