// Package ledgerserver manages ledger server creation and api routing.
package ledgerserver

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/accountrepo"
	"github.com/titandynamix/payments/internal/entryrepo"
	"github.com/titandynamix/payments/internal/events"
	"github.com/titandynamix/payments/internal/idempotencyrepo"
	"github.com/titandynamix/payments/internal/ledgerdelivery"
	"github.com/titandynamix/payments/internal/ledgerrepo"
	"github.com/titandynamix/payments/internal/ledgerservice"
	"github.com/titandynamix/payments/internal/middleware"
	"github.com/titandynamix/payments/pkg/configpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	ledgerRepo := ledgerrepo.NewRepoPGS(conn)
	accountRepo := accountrepo.NewRepoPGS(conn)
	entryRepo := entryrepo.NewRepoPGS(conn)
	keyRepo := idempotencyrepo.NewRepoPGS(conn)

	var publisher ledgerservice.EventPublisher
	if config.KafkaBrokers != "" {
		publisher = events.NewPublisher(strings.Split(config.KafkaBrokers, ","), config.KafkaTopic)
	}

	service := ledgerservice.New(ledgerRepo, accountRepo, entryRepo, keyRepo, publisher)
	engine := ledgerservice.NewRetryService(service)

	handler := ledgerdelivery.NewHandler(service, engine)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())

	router.POST("/accounts", handler.CreateAccount)
	router.GET("/accounts", handler.ListAccounts)
	router.GET("/accounts/:id", handler.GetAccount)
	router.GET("/accounts/:id/balance", handler.GetBalance)
	router.GET("/accounts/:id/entries", handler.ListEntries)

	router.POST("/transfers", handler.CreateTransfer)
	router.POST("/transfers/apply", handler.ApplyTransfer)
	router.GET("/transfers/:id", handler.GetTransferStatus)

	server := &Server{
		DB:     conn,
		Engine: router,
		Config: config,
	}

	return server, nil
}
