package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:    "token",
	Short:  "Issue a session token for local testing",
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		accountID, _ := cmd.Flags().GetString("account")
		plan, _ := cmd.Flags().GetString("plan")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		acct, err := cliAccount(accountID, plan)
		if err != nil {
			return err
		}
		acct.Email = email

		v, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		token, err := v.Issue(acct, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("account", "", "account ID (required)")
	tokenCmd.Flags().String("plan", "free", "account plan")
	tokenCmd.Flags().String("email", "", "account email")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
