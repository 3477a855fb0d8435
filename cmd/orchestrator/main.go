// Package main starts the transfer orchestrator server.
package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/titandynamix/payments/cmd/orchestratorserver"
	"github.com/titandynamix/payments/internal/middleware"
	"github.com/titandynamix/payments/pkg/configpkg"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	server, err := orchestratorserver.New(context.Background(), logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Msg("ORCHESTRATOR SERVER HAS STARTED")

	err = server.Engine.Run(config.OrchestratorAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
