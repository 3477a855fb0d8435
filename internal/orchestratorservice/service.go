// Package orchestratorservice manages the transfer orchestrator's
// business logic: idempotent replay, circuit breaking around the ledger,
// and batch fan-out.
package orchestratorservice

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/breaker"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/ledgerclient"
)

// Fallback failure reasons.
const (
	msgBreakerOpen  = "Ledger Service temporarily unavailable - circuit breaker is OPEN"
	msgServiceError = "Transfer failed due to service error: "
)

// Client provides the ledger operations needed by the orchestrator.
//
//go:generate mockgen -source service.go -destination service_mock.go -package orchestratorservice
type Client interface {
	CreateAndProcessTransfer(ctx context.Context, arg domain.TransferRequest, idempotencyKey string) (domain.Transfer, error)
	TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error)
}

// Cache replays completed transfer outcomes by idempotency key.
type Cache interface {
	Get(key string) (domain.Transfer, bool)
	Put(key string, transfer domain.Transfer)
}

// Service facilitates orchestrator business logic.
type Service struct {
	client  Client
	cache   Cache
	breaker *breaker.CircuitBreaker
}

// New returns the orchestrator service. The breaker excludes ledger 4xx
// responses from its failure accounting.
func New(client Client, cache Cache) *Service {
	cfg := breaker.DefaultConfig()
	cfg.IsBusiness = ledgerclient.IsBusiness

	return &Service{
		client:  client,
		cache:   cache,
		breaker: breaker.New(cfg),
	}
}

// Breaker exposes the circuit breaker for monitoring.
func (s *Service) Breaker() *breaker.CircuitBreaker {
	return s.breaker
}

func validateRequest(arg domain.TransferRequest) error {
	switch {
	case arg.FromAccountID == 0 || arg.ToAccountID == 0:
		return domain.ErrMissingAccountID
	case arg.FromAccountID == arg.ToAccountID:
		return domain.ErrSameAccount
	case arg.Amount == "":
		return domain.ErrInvalidAmount
	}

	return nil
}

// ProcessSingle processes one transfer. A replayed idempotency key
// short-circuits to the cached outcome; ledger faults degrade to a
// FAILED transfer rather than an error so callers always get a result.
func (s *Service) ProcessSingle(ctx context.Context, arg domain.TransferRequest, idempotencyKey string) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	if err := validateRequest(arg); err != nil {
		return domain.Transfer{}, err
	}

	if idempotencyKey != "" {
		if cached, ok := s.cache.Get(idempotencyKey); ok {
			l.Info().Str("idempotency_key", idempotencyKey).Msg("replaying cached transfer outcome")
			return cached, nil
		}
	}

	var transfer domain.Transfer

	err := s.breaker.Call(func() error {
		var callErr error
		transfer, callErr = s.client.CreateAndProcessTransfer(ctx, arg, idempotencyKey)

		return callErr
	})

	switch {
	case err == nil:
	case errors.Is(err, breaker.ErrOpenState):
		l.Warn().Msg("transfer rejected, circuit breaker open")

		transfer = failedTransfer(arg, idempotencyKey, msgBreakerOpen)
	case ledgerclient.IsBusiness(err):
		transfer = failedTransfer(arg, idempotencyKey, err.Error())
	default:
		l.Error().Err(err).Msg("ledger call failed")

		transfer = failedTransfer(arg, idempotencyKey, msgServiceError+err.Error())
	}

	if idempotencyKey != "" {
		s.cache.Put(idempotencyKey, transfer)
	}

	return transfer, nil
}

// TransferStatus proxies a status lookup to the ledger.
func (s *Service) TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error) {
	var (
		status  domain.TransferStatus
		message string
	)

	err := s.breaker.Call(func() error {
		var callErr error
		status, message, callErr = s.client.TransferStatus(ctx, transferID)

		return callErr
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpenState) {
			return "", "", err
		}

		var se *ledgerclient.StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			return "", "", domain.ErrTransferNotFound
		}

		return "", "", err
	}

	return status, message, nil
}

func failedTransfer(arg domain.TransferRequest, idempotencyKey, reason string) domain.Transfer {
	return domain.Transfer{
		ID:             uuid.New(),
		FromAccountID:  arg.FromAccountID,
		ToAccountID:    arg.ToAccountID,
		Amount:         arg.Amount,
		Status:         domain.TransferFailed,
		IdempotencyKey: idempotencyKey,
		FailureReason:  reason,
	}
}
