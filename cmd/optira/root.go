package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kylejryan/support-case-insights/internal/api"
	"github.com/kylejryan/support-case-insights/internal/app"
	"github.com/kylejryan/support-case-insights/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	envFile string
}

// deps is loaded once per invocation by the root pre-run hook.
var deps *app.Deps

var rootCmd = &cobra.Command{
	Use:   "optira",
	Short: "Collect, index and query AWS Support cases",
	Long: "optira runs the support case pipeline from a workstation: it collects cases\n" +
		"across the organization, rebuilds the Athena ledgers and answers questions.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadDeps,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadDeps(cmd *cobra.Command, _ []string) error {
	// A missing dotenv file is fine; the environment may already be set.
	_ = godotenv.Load(rootFlags.envFile)

	env, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(env, cmd.ErrOrStderr(), false)
	deps, err = app.Load(cmd.Context(), env, logger)
	return err
}

// questionArg validates a free-text question argument.
func questionArg(args []string) (string, error) {
	req := api.QueryRequest{Query: args[0]}
	if err := validator.New().Struct(req); err != nil {
		return "", fmt.Errorf("invalid question: %w", err)
	}
	return req.Query, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
