package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kylejryan/support-case-insights/internal/s3io"
)

// Save writes every case to its raw object key, overwriting earlier
// versions of the same case. It stops at the first store error.
func Save(ctx context.Context, store s3io.Store, cases *CasesByAccount, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	n := 0
	for _, acct := range cases.Accounts {
		for _, env := range cases.Cases[acct] {
			key, err := s3io.CaseKey(acct, env.Case.TimeCreated, env.Case.DisplayID)
			if err != nil {
				log.Warn("case has no usable creation time", "key", key, "error", err)
			}

			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(env); err != nil {
				return n, err
			}
			if err := store.Put(ctx, key, bytes.TrimRight(buf.Bytes(), "\n"), s3io.ContentTypeJSON); err != nil {
				return n, err
			}
			log.Debug("uploaded case", "key", key)
			n++
		}
	}
	log.Info("support cases upload done", "count", n)
	return n, nil
}
