package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"flocktwin/internal/config"
	"flocktwin/internal/logger"
	"flocktwin/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLOCKTWIN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info", "console")
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithComponent("main")

	s, err := server.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	// cancel on SIGINT/SIGTERM; Run drains and returns
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("exited")
}
