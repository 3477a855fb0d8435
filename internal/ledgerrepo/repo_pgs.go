// Package ledgerrepo manages the ledger's transactional units of work:
// the double-entry transfer and the idempotent account creation.
package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/titandynamix/payments/internal/accountrepo"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/entryrepo"
	"github.com/titandynamix/payments/internal/idempotencyrepo"
	"github.com/titandynamix/payments/pkg/errorspkg"
)

// RepoPGS runs multi-row ledger transactions over a postgres connection.
type RepoPGS struct {
	conn *sql.DB
}

// NewRepoPGS returns ledger RepoPGS.
func NewRepoPGS(conn *sql.DB) *RepoPGS {
	return &RepoPGS{conn: conn}
}

// ExecuteTransferTx applies one double-entry transfer atomically:
// it locks both accounts in ascending id order, re-checks the transfer id
// after the locks are held, verifies funds, writes the two entries and
// updates both balances under version check, then commits.
//
// Classified failures: domain.ErrAccountNotFound,
// domain.ErrTransferAlreadyProcessed, domain.ErrInsufficientBalance,
// domain.ErrVersionConflict. Any exit path releases the row locks via the
// deferred rollback.
func (r *RepoPGS) ExecuteTransferTx(ctx context.Context, arg domain.ApplyTransferParams) error {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		return domain.ErrInvalidAmount
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)

	// Lock rows in ascending id order regardless of transfer direction so
	// that opposite transfers between the same pair serialize instead of
	// deadlocking.
	firstID, secondID := arg.FromAccountID, arg.ToAccountID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := accountRepo.GetForUpdate(ctx, firstID)
	if err != nil {
		return err
	}

	second, err := accountRepo.GetForUpdate(ctx, secondID)
	if err != nil {
		return err
	}

	from, to := first, second
	if arg.FromAccountID != firstID {
		from, to = second, first
	}

	// Re-check idempotency now that the locks are held; closes the race
	// with a concurrent duplicate that passed the caller's fast check.
	count, err := entryRepo.CountByTransferID(ctx, arg.TransferID)
	if err != nil {
		return err
	}

	if count >= 2 {
		return domain.ErrTransferAlreadyProcessed
	}

	fromBalance, err := decimal.NewFromString(from.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if fromBalance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	debitAmount := "-" + arg.Amount

	if _, err := entryRepo.Create(ctx, domain.CreateEntryParams{
		TransferID: arg.TransferID,
		AccountID:  from.ID,
		Amount:     debitAmount,
		Kind:       domain.EntryKindDebit,
	}); err != nil {
		return err
	}

	if _, err := entryRepo.Create(ctx, domain.CreateEntryParams{
		TransferID: arg.TransferID,
		AccountID:  to.ID,
		Amount:     arg.Amount,
		Kind:       domain.EntryKindCredit,
	}); err != nil {
		return err
	}

	if _, err := accountRepo.AddBalance(ctx, debitAmount, from.ID, from.Version); err != nil {
		return err
	}

	if _, err := accountRepo.AddBalance(ctx, arg.Amount, to.ID, to.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

// CreateAccountTxParams is the input for the account creation unit of work.
type CreateAccountTxParams struct {
	Name           string
	Balance        string
	SeedTransferID uuid.UUID
	Key            string
	ExpiresAt      time.Time
}

// CreateAccountTx persists the account row, the optional initial-deposit
// CREDIT entry, and the idempotency record as one unit of work. The
// account row and its ledger agree from creation onward.
func (r *RepoPGS) CreateAccountTx(ctx context.Context, arg CreateAccountTxParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	var account domain.Account

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return account, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)
	keyRepo := idempotencyrepo.NewRepoPGS(tx)

	account, err = accountRepo.Create(ctx, arg.Name, arg.Balance)
	if err != nil {
		return account, err
	}

	initialBalance, err := decimal.NewFromString(arg.Balance)
	if err != nil {
		return account, domain.ErrInvalidAmount
	}

	if initialBalance.IsPositive() {
		if _, err := entryRepo.Create(ctx, domain.CreateEntryParams{
			TransferID: arg.SeedTransferID,
			AccountID:  account.ID,
			Amount:     arg.Balance,
			Kind:       domain.EntryKindCredit,
		}); err != nil {
			return account, err
		}
	}

	if err := keyRepo.Create(ctx, arg.Key, AccountCreatedResponse(account), arg.ExpiresAt); err != nil {
		return account, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return account, errorspkg.ErrInternal
	}

	return account, nil
}
