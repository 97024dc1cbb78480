package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reclaimer sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.reclaimer().SweepOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d rolled_over=%d\n", res.Expired, res.RolledOver)
			return res.Err
		},
	}
}
