package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/config"
	"vigil/internal/engine"
	"vigil/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info")
		log := logger.WithError(err)
		log.Fatal().Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)

	e := engine.New(cfg)

	// run engine in background
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Run(ctx); err != nil {
			logger.Logger.Error().Err(err).Msg("engine exited")
		}
	}()

	// wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		logger.Logger.Info().Msg("shutting down")
		cancel()
	case <-done:
	}

	// let the engine finish its graceful shutdown
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Logger.Warn().Msg("shutdown timeout")
	}
	logger.Logger.Info().Msg("exited")
}
