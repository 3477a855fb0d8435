// Package ledgerclient is the orchestrator's HTTP client for the ledger
// service.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/titandynamix/payments/internal/domain"
)

// StatusError reports a non-2xx ledger response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.StatusCode, e.Body)
}

// IsBusiness reports whether err is a ledger rejection of the request
// itself (4xx) rather than a ledger-side fault.
func IsBusiness(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.StatusCode >= 400 && se.StatusCode < 500
}

// Client calls the ledger service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a ledger client for baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type createTransferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

type transferResponse struct {
	TransferID uuid.UUID             `json:"transfer_id"`
	Status     domain.TransferStatus `json:"status"`
	Message    string                `json:"message"`
}

// CreateAndProcessTransfer posts a transfer to the ledger, forwarding the
// idempotency key so retries resolve to the same ledger transfer.
func (c *Client) CreateAndProcessTransfer(ctx context.Context, arg domain.TransferRequest, idempotencyKey string) (domain.Transfer, error) {
	body, err := json.Marshal(createTransferRequest{
		FromAccountID: arg.FromAccountID,
		ToAccountID:   arg.ToAccountID,
		Amount:        arg.Amount,
	})
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("marshaling transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("building transfer request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	var resp transferResponse
	if err := c.do(req, &resp); err != nil {
		return domain.Transfer{}, err
	}

	transfer := domain.Transfer{
		ID:             resp.TransferID,
		FromAccountID:  arg.FromAccountID,
		ToAccountID:    arg.ToAccountID,
		Amount:         arg.Amount,
		Status:         resp.Status,
		IdempotencyKey: idempotencyKey,
	}
	if resp.Status != domain.TransferSucceeded {
		transfer.FailureReason = resp.Message
	}

	return transfer, nil
}

// TransferStatus fetches the ledger's view of one transfer.
func (c *Client) TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transfers/"+transferID.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("building status request: %w", err)
	}

	var resp transferResponse
	if err := c.do(req, &resp); err != nil {
		return "", "", err
	}

	return resp.Status, resp.Message, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling ledger: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading ledger response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{StatusCode: res.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding ledger response: %w", err)
	}

	return nil
}
