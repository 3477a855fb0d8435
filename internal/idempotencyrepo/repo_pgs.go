// Package idempotencyrepo manages repository layer of account-creation
// idempotency keys.
package idempotencyrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/pkg/dbpkg"
	"github.com/titandynamix/payments/pkg/errorspkg"
)

// RepoPGS facilitates idempotency key repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns idempotency key RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const getQuery = `
SELECT key, response, expires_at FROM idempotency_keys
WHERE key = $1
`

// Get returns the record for the given key.
func (r *RepoPGS) Get(ctx context.Context, key string) (domain.IdempotencyKey, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, key)

	var k domain.IdempotencyKey

	err := row.Scan(&k.Key, &k.Response, &k.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return k, domain.ErrIdempotencyKeyNotFound
		}

		l.Error().Err(err).Send()

		return k, errorspkg.ErrInternal
	}

	return k, nil
}

const createQuery = `
INSERT INTO
    idempotency_keys (key, response, expires_at)
VALUES
    ($1, $2, $3)
`

// Create persists the key with its cached response text.
func (r *RepoPGS) Create(ctx context.Context, key, response string, expiresAt time.Time) error {
	l := zerolog.Ctx(ctx)

	if _, err := r.db.ExecContext(ctx, createQuery, key, response, expiresAt); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

const deleteQuery = `
DELETE FROM idempotency_keys
WHERE key = $1
`

// Delete removes the record for the given key.
func (r *RepoPGS) Delete(ctx context.Context, key string) error {
	l := zerolog.Ctx(ctx)

	if _, err := r.db.ExecContext(ctx, deleteQuery, key); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}
