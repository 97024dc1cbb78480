package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/portfolio-lease/internal/config"
	"github.com/iliyamo/portfolio-lease/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the portfolios, reservations and issues tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()
			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied migration %d\n", v)
			}
			return nil
		},
	}
}
