package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	q, err := questionArg(args)
	if err != nil {
		return err
	}
	s := deps.Synthesizer(cmd.Context(), bedrockruntime.NewFromConfig(deps.AWS))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), s.Answer(cmd.Context(), q))
	return err
}
