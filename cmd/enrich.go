package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/model"
)

var enrichIdentity model.LeadIdentity

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment from the command line",
	Long:  "Runs the full pipeline for a single lead and prints the JSON result. Useful for smoke-testing source credentials without the server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.Enrich(cmd.Context(), &enrichIdentity)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichIdentity.BusinessName, "name", "", "business name (required)")
	enrichCmd.Flags().StringVar(&enrichIdentity.Website, "website", "", "website URL")
	enrichCmd.Flags().StringVar(&enrichIdentity.Phone, "phone", "", "phone number")
	enrichCmd.Flags().StringVar(&enrichIdentity.City, "city", "", "city")
	enrichCmd.Flags().StringVar(&enrichIdentity.State, "state", "", "state")
	enrichCmd.Flags().StringVar(&enrichIdentity.SalesforceLeadID, "salesforce-id", "", "Salesforce Lead record id for CRM write-back")
	_ = enrichCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(enrichCmd)
}
