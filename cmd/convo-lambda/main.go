package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/appsail/convo"
	"github.com/appsail/convo/internal/config"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	// CONVO_CONFIG is optional; CONVO_* variables cover a typical deployment.
	cfg, err := config.Load(os.Getenv("CONVO_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	if err := cfg.ValidateDelivery(); err != nil {
		slog.Error("invalid delivery configuration", "err", err)
		os.Exit(1)
	}

	app, err := convo.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "err", err)
		os.Exit(1)
	}

	h := NewHandler(app.Handler())
	lambda.Start(h.Handle)
}
