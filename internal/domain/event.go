package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferCompletedEvent is emitted after a transfer commits.
type TransferCompletedEvent struct {
	TransferID    uuid.UUID `json:"transfer_id"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	Amount        string    `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}
