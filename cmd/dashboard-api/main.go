// Package main provides the dashboard API service entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/app"
	"github.com/wardboard/go-ward/internal/config"
	"github.com/wardboard/go-ward/internal/observability/tracing"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := tracing.DefaultConfig(app.ServiceName)
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.Environment = cfg.Environment
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
