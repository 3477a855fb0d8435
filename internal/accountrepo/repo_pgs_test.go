//go:build integration

package accountrepo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/titandynamix/payments/internal/accountrepo"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/integrationtest"
	"github.com/titandynamix/payments/internal/integrationtest/helpers"
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

func TestCreate(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	name := randompkg.Name()
	balance := randompkg.MoneyAmountBetween(100, 10_000)

	account, err := repo.Create(ctx, name, balance)
	require.NoError(t, err)

	require.NotZero(t, account.ID)
	require.Equal(t, name, account.Name)
	require.Equal(t, balance, account.Balance)
	require.Zero(t, account.Version)
	require.NotZero(t, account.CreatedAt)
}

func TestCreateRejectsBlankName(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	_, err := repo.Create(ctx, "", "100")
	require.ErrorIs(t, err, domain.ErrAccountNameRequired)
}

func TestCreateRejectsNegativeBalance(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	_, err := repo.Create(ctx, randompkg.Name(), "-100")
	require.ErrorIs(t, err, domain.ErrNegativeBalance)
}

func TestGet(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	want := helpers.SeedAccountWith1000Balance(t, tx)

	got, err := repo.Get(ctx, want.ID)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Balance, got.Balance)
}

func TestGetNotFound(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	_, err := repo.Get(ctx, 0)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestGetForUpdate(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	want := helpers.SeedAccountWith1000Balance(t, tx)

	got, err := repo.GetForUpdate(ctx, want.ID)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
}

func TestAddBalance(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	account := helpers.SeedAccountWith1000Balance(t, tx)

	got, err := repo.AddBalance(ctx, "-250", account.ID, account.Version)
	require.NoError(t, err)
	require.Equal(t, "750.00", got.Balance)
	require.Equal(t, account.Version+1, got.Version)
}

func TestAddBalanceVersionConflict(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	account := helpers.SeedAccountWith1000Balance(t, tx)

	_, err := repo.AddBalance(ctx, "-250", account.ID, account.Version+1)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestAddBalanceInsufficient(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	account := helpers.SeedAccountWith1000Balance(t, tx)

	_, err := repo.AddBalance(ctx, "-1500", account.ID, account.Version)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestList(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := accountrepo.NewRepoPGS(tx)

	for i := 0; i < 5; i++ {
		helpers.SeedAccountWith1000Balance(t, tx)
	}

	accounts, err := repo.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	rest, err := repo.List(ctx, 3, 3)
	require.NoError(t, err)
	require.NotEmpty(t, rest)
	require.Greater(t, rest[0].ID, accounts[2].ID)
}
