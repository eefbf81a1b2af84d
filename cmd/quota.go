package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/model"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show an account's lead quota for the current month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		accountID, _ := cmd.Flags().GetString("account")
		plan, _ := cmd.Flags().GetString("plan")
		acct, err := cliAccount(accountID, plan)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		u, err := newGuard(st).Usage(ctx, acct)
		if err != nil {
			return err
		}
		formatUsage(cmd.OutOrStdout(), u)
		return nil
	},
}

func formatUsage(w io.Writer, u *model.Usage) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Account:\t%s\n", u.AccountID)
	fmt.Fprintf(tw, "Plan:\t%s\n", u.Plan)
	fmt.Fprintf(tw, "Period:\t%s\n", u.Period)
	fmt.Fprintf(tw, "Allotted:\t%d\n", u.LeadsAllotted)
	fmt.Fprintf(tw, "Used:\t%d\n", u.LeadsUsed)
	fmt.Fprintf(tw, "Reserved:\t%d\n", u.LeadsReserved)
	fmt.Fprintf(tw, "Remaining:\t%d\n", u.Remaining())
	tw.Flush() //nolint:errcheck
}

func init() {
	quotaCmd.Flags().String("account", "", "account ID (required)")
	quotaCmd.Flags().String("plan", "free", "account plan (free, starter, pro, growth)")
	rootCmd.AddCommand(quotaCmd)
}
