package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates a non-positive amount.
	ErrNegativeAmount = errors.New("amount must be greater than zero")
	// ErrSameAccount indicates that source and destination accounts match.
	ErrSameAccount = errors.New("source and destination accounts must differ")
	// ErrMissingAccountID indicates a missing source or destination account id.
	ErrMissingAccountID = errors.New("both fromAccountId and toAccountId are required")
	// ErrInsufficientBalance indicates that the source account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransferAlreadyProcessed indicates that both entries for the transfer id already exist.
	ErrTransferAlreadyProcessed = errors.New("transfer already processed")
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrInvalidTransferID indicates a malformed client-supplied transfer id.
	ErrInvalidTransferID = errors.New("invalid transfer id")
	// ErrMissingIdempotencyKey indicates a missing Idempotency-Key header.
	ErrMissingIdempotencyKey = errors.New("missing required Idempotency-Key header")
	// ErrBatchTooLarge indicates that the batch exceeds the size cap.
	ErrBatchTooLarge = errors.New("batch size must be <= 100")
)

// TransferResult is the outcome of a ledger transfer attempt. Rejections
// are results, not errors; only unclassified faults travel as errors.
type TransferResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ApplyTransferParams is the input for the double-entry transfer engine.
// A zero TransferID means the engine generates one.
type ApplyTransferParams struct {
	TransferID    uuid.UUID `json:"transfer_id"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	Amount        string    `json:"amount"`
}

// TransferStatus reflects what the ledger knows about a transfer id.
type TransferStatus string

// Transfer statuses as exchanged between the two services.
const (
	TransferSucceeded TransferStatus = "SUCCEEDED"
	TransferFailed    TransferStatus = "FAILED"
	TransferPending   TransferStatus = "PENDING"
	TransferError     TransferStatus = "ERROR"
)

// TransferRequest is the orchestrator-side input for one transfer.
type TransferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

// Transfer is the orchestrator-side view of a transfer outcome. The
// orchestrator persists nothing; the ledger is the system of record.
type Transfer struct {
	ID             uuid.UUID      `json:"id"`
	FromAccountID  int64          `json:"from_account_id"`
	ToAccountID    int64          `json:"to_account_id"`
	Amount         string         `json:"amount"`
	Status         TransferStatus `json:"status"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
