//go:build integration

package idempotencyrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/idempotencyrepo"
	"github.com/titandynamix/payments/internal/integrationtest"
	"github.com/titandynamix/payments/internal/middleware"
	"github.com/titandynamix/payments/pkg/configpkg"
	"github.com/titandynamix/payments/pkg/randompkg"
)

var (
	dbDriver string
	dbSource string
	ctx      context.Context
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	dbDriver = config.DBDriver
	dbSource = config.DBSource

	logger := middleware.CreateLogger(config)
	ctx = logger.WithContext(context.Background())

	os.Exit(m.Run())
}

func TestCreateAndGet(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := idempotencyrepo.NewRepoPGS(tx)

	key := randompkg.String(24)
	response := "Account created with ID: 42"
	expiresAt := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, key, response, expiresAt))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, key, got.Key)
	require.Equal(t, response, got.Response)
	require.WithinDuration(t, expiresAt, got.ExpiresAt, time.Second)
}

func TestGetNotFound(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := idempotencyrepo.NewRepoPGS(tx)

	_, err := repo.Get(ctx, "absent")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestDelete(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := idempotencyrepo.NewRepoPGS(tx)

	key := randompkg.String(24)

	require.NoError(t, repo.Create(ctx, key, "response", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Delete(ctx, key))

	_, err := repo.Get(ctx, key)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := idempotencyrepo.NewRepoPGS(tx)

	require.NoError(t, repo.Delete(ctx, "absent"))
}
