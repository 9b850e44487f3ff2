package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/regretgpt/internal/server"
	"go.uber.org/zap"
)

func newServeCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(ctx context.Context, app *appContext) error {
	logger := app.ensureLogger()
	defer logger.Sync()

	cfg, err := app.ensureConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	verdictCache := openCache(ctx, cfg, logger)
	defer verdictCache.Close()

	clf := newClassifier(cfg, logger)

	srv, err := server.New(server.Config{
		Addr:           cfg.Server.Addr(),
		Production:     cfg.Server.Production(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, clf, store, verdictCache, logger)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.Int("models", len(cfg.Gemini.Models)),
		zap.Bool("cache", cfg.Cache.Enabled))

	return srv.Run(ctx)
}
