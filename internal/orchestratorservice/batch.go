package orchestratorservice

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
)

const (
	// maxBatchSize bounds one batch request.
	maxBatchSize = 100
	// batchTimeout bounds the whole batch, not individual items.
	batchTimeout = 30 * time.Second
)

// batchItemKey derives the per-item idempotency key so resubmitting the
// same batch replays item outcomes positionally.
func batchItemKey(index int, arg domain.TransferRequest) string {
	return fmt.Sprintf("batch_%d_%d_%d_%s", index, arg.FromAccountID, arg.ToAccountID, arg.Amount)
}

// ProcessBatch processes up to maxBatchSize transfers concurrently.
// Results align positionally with the input; an item that panics or
// fails is isolated and never disturbs its neighbors. Items still in
// flight when the batch deadline passes come back PENDING.
func (s *Service) ProcessBatch(ctx context.Context, args []domain.TransferRequest) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	if len(args) == 0 {
		return []domain.Transfer{}, nil
	}

	if len(args) > maxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}

	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	results := make([]domain.Transfer, len(args))
	completed := make([]bool, len(args))

	var mu sync.Mutex

	workers := len(args)
	if limit := 2 * runtime.GOMAXPROCS(0); workers > limit {
		workers = limit
	}

	indexes := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indexes {
				transfer := s.processBatchItem(ctx, i, args[i])

				mu.Lock()
				results[i] = transfer
				completed[i] = true
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range args {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}

	close(indexes)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.Warn().Int("size", len(args)).Msg("batch deadline exceeded")
	}

	// Copy under the lock; stragglers may still be writing their slots.
	mu.Lock()
	defer mu.Unlock()

	out := make([]domain.Transfer, len(args))

	for i := range results {
		if completed[i] {
			out[i] = results[i]
			continue
		}

		out[i] = pendingTransfer(args[i], batchItemKey(i, args[i]))
	}

	return out, nil
}

// processBatchItem runs one item with panic isolation.
func (s *Service) processBatchItem(ctx context.Context, index int, arg domain.TransferRequest) (transfer domain.Transfer) {
	key := batchItemKey(index, arg)

	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Int("index", index).
				Interface("panic", r).
				Msg("batch item panicked")

			transfer = failedTransfer(arg, key, fmt.Sprintf("Processing error: %v", r))
		}
	}()

	transfer, err := s.ProcessSingle(ctx, arg, key)
	if err != nil {
		return failedTransfer(arg, key, err.Error())
	}

	return transfer
}

func pendingTransfer(arg domain.TransferRequest, idempotencyKey string) domain.Transfer {
	return domain.Transfer{
		FromAccountID:  arg.FromAccountID,
		ToAccountID:    arg.ToAccountID,
		Amount:         arg.Amount,
		Status:         domain.TransferPending,
		IdempotencyKey: idempotencyKey,
		FailureReason:  "Batch deadline exceeded before processing finished",
	}
}
