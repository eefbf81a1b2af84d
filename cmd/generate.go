package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate leads for an account from the command line",
	Long:  "Runs the full acquisition pipeline (quota, search, scoring, persistence) for one account and prints the result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		accountID, _ := cmd.Flags().GetString("account")
		plan, _ := cmd.Flags().GetString("plan")
		acct, err := cliAccount(accountID, plan)
		if err != nil {
			return err
		}

		crit := model.Criteria{}
		crit.Sector, _ = cmd.Flags().GetString("sector")
		crit.CompanySize, _ = cmd.Flags().GetString("size")
		crit.Location, _ = cmd.Flags().GetString("location")
		crit.TargetPositions, _ = cmd.Flags().GetString("positions")
		crit.Precision, _ = cmd.Flags().GetString("precision")
		crit.NumberOfLeads, _ = cmd.Flags().GetInt("count")

		env, err := initApp(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Generate(ctx, acct, crit)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		formatEnvelope(cmd.OutOrStdout(), result)
		return nil
	},
}

func formatEnvelope(w io.Writer, env leadgen.Envelope) {
	fmt.Fprintln(w, env.Message)
	if env.Reason != "" {
		fmt.Fprintf(w, "Reason:    %s\n", env.Reason)
	}
	if env.Meta != nil {
		fmt.Fprintf(w, "Attempts:  %d\n", env.Meta.Attempts)
		if len(env.Meta.Relaxed) > 0 {
			fmt.Fprintf(w, "Relaxed:   %v\n", env.Meta.Relaxed)
		}
		if env.Meta.TotalFound != nil {
			fmt.Fprintf(w, "Found:     %d\n", *env.Meta.TotalFound)
		}
	}
	if len(env.Data) > 0 {
		fmt.Fprintln(w)
		formatLeads(w, env.Data)
	}
}

func formatLeads(w io.Writer, leads []model.Lead) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tPOSITION\tSCORE\tSTATUS\tSOURCE")
	for _, l := range leads {
		score := "-"
		if l.Score != nil {
			score = fmt.Sprintf("%d", *l.Score)
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.FirstName, l.LastName, l.Company, l.Position, score, l.Status, l.Source)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	generateCmd.Flags().String("account", "", "account ID to generate for (required)")
	generateCmd.Flags().String("plan", "free", "account plan (free, starter, pro, growth)")
	generateCmd.Flags().String("sector", "", "comma-separated sectors")
	generateCmd.Flags().String("size", "", "company size range, e.g. 11-50")
	generateCmd.Flags().String("location", "", "city and/or country")
	generateCmd.Flags().String("positions", "", "comma-separated target positions")
	generateCmd.Flags().String("precision", "", "free-text qualifier")
	generateCmd.Flags().Int("count", 10, "number of leads requested")
	generateCmd.Flags().Bool("json", false, "print the raw response envelope")
	rootCmd.AddCommand(generateCmd)
}
