// Package helpers provides seed data helpers used in integration tests.
package helpers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/titandynamix/payments/internal/accountrepo"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/entryrepo"
	"github.com/titandynamix/payments/pkg/dbpkg"
	"github.com/titandynamix/payments/pkg/randompkg"
)

// SeedAccount creates an account with the given balance.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, balance string) domain.Account {
	t.Helper()

	account, err := accountrepo.NewRepoPGS(db).Create(context.Background(), randompkg.Name(), balance)
	if err != nil {
		t.Fatalf("accountrepo.Create(ctx, name, %v) returned error: %v", balance, err)
	}

	return account
}

// SeedAccountWith1000Balance creates an account holding 1000.
func SeedAccountWith1000Balance(t *testing.T, db dbpkg.SQLInterface) domain.Account {
	t.Helper()

	return SeedAccount(t, db, "1000")
}

// SeedEntry records a ledger entry against the account.
func SeedEntry(t *testing.T, db dbpkg.SQLInterface, transferID uuid.UUID, accountID int64, amount string, kind domain.EntryKind) domain.Entry {
	t.Helper()

	entry, err := entryrepo.NewRepoPGS(db).Create(context.Background(), domain.CreateEntryParams{
		TransferID: transferID,
		AccountID:  accountID,
		Amount:     amount,
		Kind:       kind,
	})
	if err != nil {
		t.Fatalf("entryrepo.Create(ctx, ...) returned error: %v", err)
	}

	return entry
}
