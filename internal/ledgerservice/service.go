// Package ledgerservice manages business logic layer of the ledger:
// double-entry transfers, idempotent account creation and status lookups.
package ledgerservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/ledgerrepo"
)

const idempotencyKeyTTL = 24 * time.Hour

// Repo provides the transactional units of work needed by the service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	ExecuteTransferTx(ctx context.Context, arg domain.ApplyTransferParams) error
	CreateAccountTx(ctx context.Context, arg ledgerrepo.CreateAccountTxParams) (domain.Account, error)
}

// AccountRepo provides read access to account rows.
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
	List(ctx context.Context, limit, offset int32) ([]domain.Account, error)
}

// EntryRepo provides read access to ledger entries.
type EntryRepo interface {
	CountByTransferID(ctx context.Context, transferID uuid.UUID) (int64, error)
	ListByAccount(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error)
}

// KeyRepo provides access to persisted account-creation idempotency keys.
type KeyRepo interface {
	Get(ctx context.Context, key string) (domain.IdempotencyKey, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher emits transfer-completed events after a commit.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, event domain.TransferCompletedEvent) error
}

// TransferEngine applies one double-entry transfer. Implemented by Service
// and wrapped by RetryService.
type TransferEngine interface {
	ExecuteTransfer(ctx context.Context, arg domain.ApplyTransferParams) (domain.TransferResult, error)
}

// Service facilitates ledger business logic.
type Service struct {
	repo        Repo
	accountRepo AccountRepo
	entryRepo   EntryRepo
	keyRepo     KeyRepo
	publisher   EventPublisher
}

// New returns the ledger service. The publisher may be nil, in which case
// no events are emitted.
func New(repo Repo, ar AccountRepo, er EntryRepo, kr KeyRepo, pub EventPublisher) *Service {
	return &Service{
		repo:        repo,
		accountRepo: ar,
		entryRepo:   er,
		keyRepo:     kr,
		publisher:   pub,
	}
}

// Result messages exchanged with the orchestrator. Kept stable because the
// orchestrator replays them verbatim to its callers.
const (
	msgMissingFields    = "Invalid request: fromAccountId, toAccountId, and amount are required."
	msgSameAccount      = "Invalid transfer: source and destination accounts must differ."
	msgInvalidAmount    = "Invalid amount: must be greater than zero."
	msgAlreadyProcessed = "Transfer already processed."
	msgAccountNotFound  = "Account not found for provided IDs."
	msgInsufficient     = "Insufficient funds in the source account."
	msgCompleted        = "Transfer completed successfully."
)

func validateTransfer(arg domain.ApplyTransferParams) (domain.TransferResult, bool) {
	if arg.FromAccountID == 0 || arg.ToAccountID == 0 || arg.Amount == "" {
		return domain.TransferResult{Message: msgMissingFields}, false
	}

	if arg.FromAccountID == arg.ToAccountID {
		return domain.TransferResult{Message: msgSameAccount}, false
	}

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil || !amount.IsPositive() {
		return domain.TransferResult{Message: msgInvalidAmount}, false
	}

	return domain.TransferResult{}, true
}

// ExecuteTransfer validates the request, short-circuits already-processed
// transfer ids, and runs the atomic double-entry unit of work. Rejections
// come back as failure results; a version conflict surfaces as
// domain.ErrVersionConflict for RetryService to handle.
func (s *Service) ExecuteTransfer(ctx context.Context, arg domain.ApplyTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	if result, ok := validateTransfer(arg); !ok {
		return result, nil
	}

	if arg.TransferID == uuid.Nil {
		arg.TransferID = uuid.New()
	}

	// Fast idempotency check before any lock is taken.
	count, err := s.entryRepo.CountByTransferID(ctx, arg.TransferID)
	if err != nil {
		return domain.TransferResult{}, err
	}

	if count >= 2 {
		return domain.TransferResult{Success: true, Message: msgAlreadyProcessed}, nil
	}

	err = s.repo.ExecuteTransferTx(ctx, arg)

	switch {
	case err == nil:
		s.publishCompleted(ctx, arg)
		return domain.TransferResult{Success: true, Message: msgCompleted}, nil
	case errors.Is(err, domain.ErrTransferAlreadyProcessed):
		// A concurrent duplicate won the race; the original outcome stands.
		return domain.TransferResult{Success: true, Message: msgAlreadyProcessed}, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.TransferResult{Message: msgAccountNotFound}, nil
	case errors.Is(err, domain.ErrInsufficientBalance):
		return domain.TransferResult{Message: msgInsufficient}, nil
	case errors.Is(err, domain.ErrInvalidAmount):
		return domain.TransferResult{Message: msgInvalidAmount}, nil
	default:
		l.Error().Err(err).Send()
		return domain.TransferResult{}, err
	}
}

func (s *Service) publishCompleted(ctx context.Context, arg domain.ApplyTransferParams) {
	if s.publisher == nil {
		return
	}

	event := domain.TransferCompletedEvent{
		TransferID:    arg.TransferID,
		FromAccountID: arg.FromAccountID,
		ToAccountID:   arg.ToAccountID,
		Amount:        arg.Amount,
		OccurredAt:    time.Now().UTC(),
	}

	// The transfer has committed; a publish failure is operational noise,
	// not a transfer failure.
	if err := s.publisher.PublishTransferCompleted(ctx, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("transfer_id", arg.TransferID.String()).Msg("publish transfer completed")
	}
}

// CreateAccount creates an account idempotently. A live reused key replays
// the cached response without creating a second account; an expired key is
// deleted and the request proceeds as new.
func (s *Service) CreateAccount(ctx context.Context, key string, arg domain.CreateAccountParams) (domain.AccountCreation, error) {
	if strings.TrimSpace(key) == "" {
		return domain.AccountCreation{}, domain.ErrMissingIdempotencyKey
	}

	existing, err := s.keyRepo.Get(ctx, key)

	switch {
	case err == nil:
		if existing.ExpiresAt.After(time.Now()) {
			return domain.AccountCreation{Response: existing.Response, Duplicate: true}, nil
		}

		if err := s.keyRepo.Delete(ctx, key); err != nil {
			return domain.AccountCreation{}, err
		}
	case errors.Is(err, domain.ErrIdempotencyKeyNotFound):
	default:
		return domain.AccountCreation{}, err
	}

	if strings.TrimSpace(arg.Name) == "" {
		return domain.AccountCreation{}, domain.ErrAccountNameRequired
	}

	balance := arg.Balance
	if balance == "" {
		balance = "0"
	}

	initialBalance, err := decimal.NewFromString(balance)
	if err != nil {
		return domain.AccountCreation{}, domain.ErrInvalidAmount
	}

	if initialBalance.IsNegative() {
		return domain.AccountCreation{}, domain.ErrNegativeBalance
	}

	seedTransferID := uuid.New()

	if arg.TransferID != "" {
		seedTransferID, err = uuid.Parse(arg.TransferID)
		if err != nil {
			return domain.AccountCreation{}, domain.ErrInvalidTransferID
		}
	}

	account, err := s.repo.CreateAccountTx(ctx, ledgerrepo.CreateAccountTxParams{
		Name:           arg.Name,
		Balance:        balance,
		SeedTransferID: seedTransferID,
		Key:            key,
		ExpiresAt:      time.Now().Add(idempotencyKeyTTL),
	})
	if err != nil {
		return domain.AccountCreation{}, err
	}

	return domain.AccountCreation{
		Account:  account,
		Response: ledgerrepo.AccountCreatedResponse(account),
	}, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.accountRepo.Get(ctx, id)
}

// List returns the specified page of accounts.
func (s *Service) List(ctx context.Context, pageSize, pageID int32) ([]domain.Account, error) {
	return s.accountRepo.List(ctx, pageSize, (pageID-1)*pageSize)
}

// Balance returns the current balance of the account.
func (s *Service) Balance(ctx context.Context, id int64) (string, error) {
	account, err := s.accountRepo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	return account.Balance, nil
}

// Entries returns the specified page of the account's ledger entries.
func (s *Service) Entries(ctx context.Context, accountID int64, pageSize, pageID int32) ([]domain.Entry, error) {
	if _, err := s.accountRepo.Get(ctx, accountID); err != nil {
		return nil, err
	}

	return s.entryRepo.ListByAccount(ctx, accountID, pageSize, (pageID-1)*pageSize)
}

// TransferStatus derives a transfer's status from its recorded entries.
func (s *Service) TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error) {
	count, err := s.entryRepo.CountByTransferID(ctx, transferID)
	if err != nil {
		return "", "", err
	}

	if count == 0 {
		return domain.TransferPending, "Not yet applied", nil
	}

	return domain.TransferSucceeded, "Transfer applied", nil
}
