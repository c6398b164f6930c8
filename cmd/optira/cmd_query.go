package main

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/spf13/cobra"

	"github.com/kylejryan/support-case-insights/internal/api"
)

var queryFlags struct {
	sqlOnly bool
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Translate a question to SQL and run it on Athena",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryFlags.sqlOnly, "sql-only", false, "Print the generated SQL without running it")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := deps.Env.RequireQuery(); err != nil {
		return err
	}
	q, err := questionArg(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sql, ok := deps.Translator(bedrockruntime.NewFromConfig(deps.AWS)).Translate(ctx, q)
	if !ok {
		return errors.New("failed to generate SQL query from Bedrock")
	}
	if queryFlags.sqlOnly {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), sql)
		return err
	}

	res := api.AggregationResult{GeneratedQuery: sql}
	rs, err := deps.Executor().Execute(ctx, sql)
	if err != nil {
		res.AthenaResults = api.ErrorResponse{Error: err.Error()}
	} else {
		res.AthenaResults = rs
	}
	return printJSON(cmd.OutOrStdout(), res)
}
