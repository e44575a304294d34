package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/bearwatch/bearwatch-go/internal/config"
	"github.com/bearwatch/bearwatch-go/internal/mockserver"
	"github.com/bearwatch/bearwatch-go/internal/utils/logger"
)

func main() {
	logger.Init()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	srv, err := mockserver.NewServer(&cfg.MockServerEnvConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init mock server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down mock server")
		if err := srv.Shutdown(); err != nil {
			log.Error().Err(err).Msg("mock server shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.MockAddr).Msg("mock ingest server listening")
	if err := srv.Listen(); err != nil {
		log.Fatal().Err(err).Msg("mock server exited")
	}
}
