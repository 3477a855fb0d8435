// Package entryrepo manages repository layer of ledger entries.
package entryrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/pkg/dbpkg"
	"github.com/titandynamix/payments/pkg/errorspkg"
)

// RepoPGS facilitates ledger entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    ledger_entries (transfer_id, account_id, amount, kind)
VALUES
    ($1, $2, $3, $4)
RETURNING id, transfer_id, account_id, amount, kind, created_at
`

// Create appends one immutable entry. A duplicate (transfer_id, kind) pair
// violates the unique constraint and is reported as
// domain.ErrTransferAlreadyProcessed.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, arg.TransferID, arg.AccountID, arg.Amount, arg.Kind)

	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.TransferID,
		&e.AccountID,
		&e.Amount,
		&e.Kind,
		&e.CreatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "ledger_entries_transfer_id_kind_key":
				return e, domain.ErrTransferAlreadyProcessed
			case "ledger_entries_account_id_fkey":
				return e, domain.ErrAccountNotFound
			}
		}

		l.Error().Err(err).Send()

		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const countByTransferIDQuery = `
SELECT count(id) FROM ledger_entries
WHERE transfer_id = $1
`

// CountByTransferID returns how many entries exist for the transfer id.
// Two means the transfer has fully completed.
func (r *RepoPGS) CountByTransferID(ctx context.Context, transferID uuid.UUID) (int64, error) {
	l := zerolog.Ctx(ctx)

	var count int64

	err := r.db.QueryRowContext(ctx, countByTransferIDQuery, transferID).Scan(&count)
	if err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	return count, nil
}

const listByTransferIDQuery = `
SELECT id, transfer_id, account_id, amount, kind, created_at FROM ledger_entries
WHERE transfer_id = $1
ORDER BY id
`

// ListByTransferID returns the entries recorded under the transfer id.
func (r *RepoPGS) ListByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.Entry, error) {
	return r.list(ctx, listByTransferIDQuery, transferID)
}

const listByAccountQuery = `
SELECT id, transfer_id, account_id, amount, kind, created_at FROM ledger_entries
WHERE account_id = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// ListByAccount returns the specified number of entries for the given account.
func (r *RepoPGS) ListByAccount(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error) {
	return r.list(ctx, listByAccountQuery, accountID, limit, offset)
}

func (r *RepoPGS) list(ctx context.Context, query string, args ...interface{}) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(
			&e.ID,
			&e.TransferID,
			&e.AccountID,
			&e.Amount,
			&e.Kind,
			&e.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
