package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kylejryan/support-case-insights/internal/models"
)

var runsFlags struct {
	kind  string
	limit int32
	json  bool
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent collection or ingestion runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsFlags.kind, "kind", string(models.RunIngest), "Run kind: collect or ingest")
	f.Int32Var(&runsFlags.limit, "limit", 20, "Maximum runs to list")
	f.BoolVar(&runsFlags.json, "json", false, "Print JSON instead of a table")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	repo := deps.Runs()
	if repo == nil {
		return errors.New("run history disabled: RUNS_TABLE is not set")
	}
	kind := models.RunKind(runsFlags.kind)
	if kind != models.RunCollect && kind != models.RunIngest {
		return fmt.Errorf("unknown run kind %q", runsFlags.kind)
	}
	runs, err := repo.ListRuns(cmd.Context(), kind, runsFlags.limit)
	if err != nil {
		return err
	}
	if runsFlags.json {
		return printJSON(cmd.OutOrStdout(), runs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tSTARTED\tFILES\tRESOLVED\tACTIVE\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.Status, r.StartedAt, r.FilesProcessed, r.ResolvedCount, r.ActiveCount, r.Error)
	}
	return tw.Flush()
}
