package ledgerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/titandynamix/payments/internal/domain"
)

func TestCreateAndProcessTransfer(t *testing.T) {
	transferID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transfers", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req createTransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(1), req.FromAccountID)
		require.Equal(t, int64(2), req.ToAccountID)
		require.Equal(t, "100", req.Amount)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(transferResponse{
			TransferID: transferID,
			Status:     domain.TransferSucceeded,
			Message:    "Transfer completed successfully.",
		}))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)

	transfer, err := client.CreateAndProcessTransfer(context.Background(), domain.TransferRequest{
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        "100",
	}, "key-1")

	require.NoError(t, err)
	require.Equal(t, transferID, transfer.ID)
	require.Equal(t, domain.TransferSucceeded, transfer.Status)
	require.Equal(t, "key-1", transfer.IdempotencyKey)
	require.Empty(t, transfer.FailureReason)
}

func TestCreateAndProcessTransferFailedOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transferResponse{
			TransferID: uuid.New(),
			Status:     domain.TransferFailed,
			Message:    "Insufficient funds in the source account.",
		})
	}))
	defer server.Close()

	client := New(server.URL, time.Second)

	transfer, err := client.CreateAndProcessTransfer(context.Background(), domain.TransferRequest{
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        "1000000",
	}, "key-1")

	require.NoError(t, err)
	require.Equal(t, domain.TransferFailed, transfer.Status)
	require.Equal(t, "Insufficient funds in the source account.", transfer.FailureReason)
}

func TestCreateAndProcessTransferOmitsEmptyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Idempotency-Key"]
		require.False(t, present)

		json.NewEncoder(w).Encode(transferResponse{TransferID: uuid.New(), Status: domain.TransferSucceeded})
	}))
	defer server.Close()

	client := New(server.URL, time.Second)

	_, err := client.CreateAndProcessTransfer(context.Background(), domain.TransferRequest{
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        "100",
	}, "")

	require.NoError(t, err)
}

func TestCreateAndProcessTransferStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, time.Second)

	_, err := client.CreateAndProcessTransfer(context.Background(), domain.TransferRequest{
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        "100",
	}, "key-1")

	require.Error(t, err)

	se, ok := err.(*StatusError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Contains(t, se.Body, "bad request")
}

func TestTransferStatus(t *testing.T) {
	transferID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/transfers/"+transferID.String(), r.URL.Path)

		json.NewEncoder(w).Encode(transferResponse{
			TransferID: transferID,
			Status:     domain.TransferPending,
			Message:    "Not yet applied",
		})
	}))
	defer server.Close()

	client := New(server.URL, time.Second)

	status, message, err := client.TransferStatus(context.Background(), transferID)

	require.NoError(t, err)
	require.Equal(t, domain.TransferPending, status)
	require.Equal(t, "Not yet applied", message)
}

func TestTransferStatusConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, time.Second)

	_, _, err := client.TransferStatus(context.Background(), uuid.New())

	require.Error(t, err)
	require.False(t, IsBusiness(err))
}

func TestIsBusiness(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "400", err: &StatusError{StatusCode: 400}, want: true},
		{name: "404", err: &StatusError{StatusCode: 404}, want: true},
		{name: "422", err: &StatusError{StatusCode: 422}, want: true},
		{name: "500", err: &StatusError{StatusCode: 500}, want: false},
		{name: "503", err: &StatusError{StatusCode: 503}, want: false},
		{name: "plain error", err: context.DeadlineExceeded, want: false},
		{name: "nil", err: nil, want: false},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsBusiness(tc.err))
		})
	}
}
