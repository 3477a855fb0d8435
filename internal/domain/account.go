// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNameRequired indicates an empty account name.
	ErrAccountNameRequired = errors.New("account name cannot be empty")
	// ErrNegativeBalance indicates a negative initial balance.
	ErrNegativeBalance = errors.New("initial balance must not be negative")
	// ErrVersionConflict indicates that the account row changed between read and write.
	ErrVersionConflict = errors.New("account version conflict")
)

// Account holds a named balance row of the ledger.
// Version strictly increases on every committed mutation.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAccountParams holds data needed for Account creation.
type CreateAccountParams struct {
	Name       string `json:"name"`
	Balance    string `json:"balance"`
	TransferID string `json:"transfer_id"`
}

// AccountCreation is the outcome of an idempotent account creation.
// When Duplicate is set, Response carries the originally cached text and
// Account is zero.
type AccountCreation struct {
	Account   Account
	Response  string
	Duplicate bool
}

// IdempotencyKey is a persisted key to cached-response record with expiry.
type IdempotencyKey struct {
	Key       string
	Response  string
	ExpiresAt time.Time
}

// ErrIdempotencyKeyNotFound indicates that the idempotency key is not persisted.
var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
