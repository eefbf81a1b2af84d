package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and export stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		accountID, _ := cmd.Flags().GetString("account")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, accountID, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		formatLeads(cmd.OutOrStdout(), leads)
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an account's leads to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return eris.New("--out is required")
		}
		if _, err := export.ParseFormat(filepath.Ext(out)); err != nil {
			return err
		}
		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		accountID, _ := cmd.Flags().GetString("account")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, accountID, filter)
		if err != nil {
			return eris.Wrap(err, "leads export")
		}
		if err := export.ToFile(out, leads); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d leads to %s\n", len(leads), out)
		return nil
	},
}

func leadFilterFromFlags(cmd *cobra.Command) (model.LeadFilter, error) {
	accountID, _ := cmd.Flags().GetString("account")
	if accountID == "" {
		return model.LeadFilter{}, eris.New("--account is required")
	}
	status, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	return model.LeadFilter{
		Status: model.LeadStatus(status),
		Source: model.LeadSource(source),
		Limit:  limit,
	}, nil
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().String("account", "", "account ID (required)")
		c.Flags().String("status", "", "filter by status (new, contacted, qualified, converted, lost)")
		c.Flags().String("source", "", "filter by source (apollo, manual)")
	}
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")
	leadsExportCmd.Flags().Int("limit", 10000, "max number of leads to export")
	leadsExportCmd.Flags().String("out", "", "output file (.csv or .xlsx)")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
