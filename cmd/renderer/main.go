package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/openshare-counts/internal/app"
	"github.com/samvad-hq/openshare-counts/internal/config"
	"github.com/samvad-hq/openshare-counts/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "renderer failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("renderer starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer, err := app.NewRenderer(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize renderer", "error", err)
		return err
	}

	if err := renderer.Run(ctx); err != nil {
		return fmt.Errorf("renderer run: %w", err)
	}

	return nil
}
