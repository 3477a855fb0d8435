package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind distinguishes the two sides of a double-entry transfer.
type EntryKind string

// The only two entry kinds. A completed transfer has exactly one of each.
const (
	EntryKindDebit  EntryKind = "DEBIT"
	EntryKindCredit EntryKind = "CREDIT"
)

// Entry holds one immutable side of a transfer. Amount is negative for
// DEBIT and positive for CREDIT; the two rows of a transfer sum to zero.
type Entry struct {
	ID         int64     `json:"id"`
	TransferID uuid.UUID `json:"transfer_id"`
	AccountID  int64     `json:"account_id"`
	Amount     string    `json:"amount"`
	Kind       EntryKind `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateEntryParams holds data needed for Entry creation.
type CreateEntryParams struct {
	TransferID uuid.UUID
	AccountID  int64
	Amount     string
	Kind       EntryKind
}
