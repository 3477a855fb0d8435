// Package main starts the ledger API server.
package main

import (
	"github.com/rs/zerolog/log"

	"github.com/titandynamix/payments/cmd/ledgerserver"
	"github.com/titandynamix/payments/internal/middleware"
	"github.com/titandynamix/payments/pkg/configpkg"
	"github.com/titandynamix/payments/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}

	server, err := ledgerserver.New(db, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Msg("LEDGER SERVER HAS STARTED")

	err = server.Engine.Run(config.LedgerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
