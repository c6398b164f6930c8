// Package main serves natural-language case questions behind API Gateway.
package main

import (
	"context"
	"log"
	"os"

	"github.com/kylejryan/support-case-insights/internal/app"
	"github.com/kylejryan/support-case-insights/internal/config"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env := config.MustLoad()
	if err := env.RequireQuery(); err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(env, os.Stdout, true)
	ctx := context.Background()
	deps, err := app.Load(ctx, env, logger)
	if err != nil {
		log.Fatal(err)
	}
	lambda.Start(deps.Dispatcher(ctx).HTTPHandler(false))
}
