package ledgerservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
)

const (
	maxTransferAttempts = 3
	retryBaseDelay      = 50 * time.Millisecond
)

// Retry outcome messages.
const (
	msgHighContention   = "Transfer failed due to high concurrency. Please retry."
	msgRetryInterrupted = "Transfer interrupted during retry."
)

// RetryService wraps a TransferEngine and retries version-conflict
// failures with increasing backoff. Every other outcome passes through
// untouched.
type RetryService struct {
	engine      TransferEngine
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryService returns a RetryService with the default retry policy.
func NewRetryService(engine TransferEngine) *RetryService {
	return &RetryService{
		engine:      engine,
		maxAttempts: maxTransferAttempts,
		baseDelay:   retryBaseDelay,
	}
}

// ExecuteTransfer runs the wrapped engine, retrying up to the attempt
// bound on domain.ErrVersionConflict. Exhaustion becomes a high-contention
// failure result; cancellation during a backoff sleep aborts immediately.
func (s *RetryService) ExecuteTransfer(ctx context.Context, arg domain.ApplyTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	// Pin the transfer id so every attempt targets the same idempotency scope.
	if arg.TransferID == uuid.Nil {
		arg.TransferID = uuid.New()
	}

	for attempt := 1; ; attempt++ {
		result, err := s.engine.ExecuteTransfer(ctx, arg)
		if !errors.Is(err, domain.ErrVersionConflict) {
			return result, err
		}

		l.Warn().
			Int("attempt", attempt).
			Str("transfer_id", arg.TransferID.String()).
			Msg("optimistic lock failure on transfer")

		if attempt >= s.maxAttempts {
			l.Error().Str("transfer_id", arg.TransferID.String()).Msg("max retries exceeded for transfer")
			return domain.TransferResult{Message: msgHighContention}, nil
		}

		timer := time.NewTimer(s.baseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.TransferResult{Message: msgRetryInterrupted}, nil
		case <-timer.C:
		}
	}
}
