package main

import (
	"github.com/spf13/cobra"

	"github.com/kylejryan/support-case-insights/internal/app"
)

var collectFlags struct {
	days      int
	caseID    string
	accountID string
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect support cases into the case bucket",
	Long: "Collects cases from every active organization account (or only the home\n" +
		"account when the organization cannot be listed) and uploads them as raw\n" +
		"case objects. With --case-id only that case is collected.",
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	f := collectCmd.Flags()
	f.IntVar(&collectFlags.days, "days", 0, "Lookback window in days for the home account (default LOOKBACK_DAYS)")
	f.StringVar(&collectFlags.caseID, "case-id", "", "Collect a single case by display id")
	f.StringVar(&collectFlags.accountID, "account-id", "", "Account that owns --case-id (default home account)")
}

func runCollect(cmd *cobra.Command, _ []string) error {
	if err := deps.Env.RequireBucket(); err != nil {
		return err
	}
	res, err := deps.Collection().Run(cmd.Context(), app.CollectRequest{
		LookbackDays: collectFlags.days,
		CaseID:       collectFlags.caseID,
		AccountID:    collectFlags.accountID,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
