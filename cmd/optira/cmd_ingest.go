package main

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/kylejryan/support-case-insights/internal/s3io"
)

var ingestFlags struct {
	batchSize int
	presign   time.Duration
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the resolved and active case ledgers",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.IntVar(&ingestFlags.batchSize, "batch-size", 0, "Records per flush (default 10000)")
	f.DurationVar(&ingestFlags.presign, "presign", 0, "Print download links for the ledgers valid for this long")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if err := deps.Env.RequireBucket(); err != nil {
		return err
	}
	w := deps.LedgerWriter()
	w.BatchSize = ingestFlags.batchSize

	res, err := w.Ingest(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printJSON(out, res); err != nil {
		return err
	}
	if ingestFlags.presign <= 0 || res.FilesProcessed == 0 {
		return nil
	}

	p := s3.NewPresignClient(deps.S3())
	for _, key := range []string{res.ResolvedKey, res.ActiveKey} {
		if key == "" {
			continue
		}
		url, err := s3io.PresignGet(cmd.Context(), p, deps.Env.Bucket, key, ingestFlags.presign)
		if err != nil {
			return fmt.Errorf("presign %s: %w", key, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", key, url)
	}
	return nil
}
