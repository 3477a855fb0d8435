// Package orchestratorserver manages orchestrator server creation and
// api routing.
package orchestratorserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/idempotencycache"
	"github.com/titandynamix/payments/internal/ledgerclient"
	"github.com/titandynamix/payments/internal/middleware"
	"github.com/titandynamix/payments/internal/orchestratordelivery"
	"github.com/titandynamix/payments/internal/orchestratorservice"
	"github.com/titandynamix/payments/pkg/configpkg"
)

// Server holds the handlers router and configuration.
type Server struct {
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes. The
// idempotency cache sweeper runs until ctx is done.
func New(ctx context.Context, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	client := ledgerclient.New(config.LedgerBaseURL, config.LedgerClientTimeout)

	cache := idempotencycache.New(idempotencycache.DefaultTTL)
	cache.StartSweeper(logger.WithContext(ctx), idempotencycache.DefaultSweepInterval)

	service := orchestratorservice.New(client, cache)

	handler := orchestratordelivery.NewHandler(service, service.Breaker())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())

	router.POST("/transfers", handler.CreateTransfer)
	router.POST("/transfers/batch", handler.CreateBatch)
	router.GET("/transfers/:id", handler.GetTransferStatus)

	router.GET("/health", handler.GetHealth)
	router.GET("/circuit-breaker/status", handler.GetBreakerStatus)

	server := &Server{
		Engine: router,
		Config: config,
	}

	return server, nil
}
