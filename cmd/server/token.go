package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/portfolio-lease/internal/utils"
)

// newTokenCommand mints a development access token.  Production tokens
// are issued by the identity service with the same claims.
func newTokenCommand() *cobra.Command {
	var (
		email  string
		tenant uint64
		role   string
		ttl    int
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			switch {
			case secret == "":
				return errors.New("JWT_SECRET or --secret is required")
			case email == "":
				return errors.New("--email is required")
			case tenant == 0:
				return errors.New("--tenant is required")
			}
			tok, err := utils.NewAccessToken(secret, email, tenant, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "holder email (sub claim)")
	cmd.Flags().Uint64Var(&tenant, "tenant", 0, "tenant id")
	cmd.Flags().StringVar(&role, "role", "analyst", "role claim")
	cmd.Flags().IntVar(&ttl, "ttl", 60, "lifetime in minutes")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	return cmd
}
