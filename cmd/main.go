package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/app"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"go.uber.org/fx"
)

const stopTimeout = 30 * time.Second

func main() {
	log := logger.New(logger.Opts{})

	application := fx.New(
		fx.Logger(log),
		fx.StopTimeout(stopTimeout),
		app.Module,
	)

	if err := application.Start(context.Background()); err != nil {
		log.Error("Failed to start research bot", "error", err)
		os.Exit(1)
	}
	log.Info("Research bot started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Shutting down", "signal", sig.String())

	// Running research is cancelled and the worker pool drained before the pool closes.
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		log.Error("Failed to stop research bot", "error", err)
		os.Exit(1)
	}
}
