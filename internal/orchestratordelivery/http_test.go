package orchestratordelivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/titandynamix/payments/internal/breaker"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/pkg/errorspkg"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*gin.Engine, *MockService, *MockMonitor) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	service := NewMockService(ctrl)
	monitor := NewMockMonitor(ctrl)
	handler := NewHandler(service, monitor)

	server := gin.New()

	server.POST("/transfers", handler.CreateTransfer)
	server.POST("/transfers/batch", handler.CreateBatch)
	server.GET("/transfers/:id", handler.GetTransferStatus)
	server.GET("/health", handler.GetHealth)
	server.GET("/circuit-breaker/status", handler.GetBreakerStatus)

	return server, service, monitor
}

func TestCreateTransferHandler(t *testing.T) {
	arg := domain.TransferRequest{FromAccountID: 1, ToAccountID: 2, Amount: "100"}
	transfer := domain.Transfer{
		ID:             uuid.New(),
		FromAccountID:  1,
		ToAccountID:    2,
		Amount:         "100",
		Status:         domain.TransferSucceeded,
		IdempotencyKey: "key-1",
	}

	testCases := []struct {
		name           string
		idempotencyKey string
		requestBody    gin.H
		buildStubs     func(service *MockService)
		wantStatusCode int
		checkBody      func(body map[string]any)
	}{
		{
			name:           "Created",
			idempotencyKey: "key-1",
			requestBody:    gin.H{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					ProcessSingle(gomock.Any(), gomock.Eq(arg), gomock.Eq("key-1")).
					Times(1).
					Return(transfer, nil)
			},
			wantStatusCode: http.StatusCreated,
			checkBody: func(body map[string]any) {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				require.Equal(t, string(domain.TransferSucceeded), data["status"])
				require.Equal(t, transfer.ID.String(), data["id"])
			},
		},
		{
			name:        "Missing idempotency key",
			requestBody: gin.H{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
			buildStubs: func(service *MockService) {
				service.EXPECT().ProcessSingle(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			checkBody: func(body map[string]any) {
				require.Equal(t, domain.ErrMissingIdempotencyKey.Error(), body["error"])
			},
		},
		{
			name:           "Same account rejected",
			idempotencyKey: "key-1",
			requestBody:    gin.H{"from_account_id": 1, "to_account_id": 1, "amount": "100"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					ProcessSingle(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{}, domain.ErrSameAccount)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "Degraded outcome still created",
			idempotencyKey: "key-1",
			requestBody:    gin.H{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
			buildStubs: func(service *MockService) {
				failed := transfer
				failed.Status = domain.TransferFailed
				failed.FailureReason = "Ledger Service temporarily unavailable - circuit breaker is OPEN"

				service.EXPECT().
					ProcessSingle(gomock.Any(), gomock.Eq(arg), gomock.Eq("key-1")).
					Times(1).
					Return(failed, nil)
			},
			wantStatusCode: http.StatusCreated,
			checkBody: func(body map[string]any) {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				require.Equal(t, string(domain.TransferFailed), data["status"])
				require.NotEmpty(t, data["failure_reason"])
			},
		},
		{
			name:           "Internal error",
			idempotencyKey: "key-1",
			requestBody:    gin.H{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					ProcessSingle(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Transfer{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			server, service, _ := newTestServer(t)
			tc.buildStubs(service)

			body, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(body))
			if tc.idempotencyKey != "" {
				req.Header.Set("Idempotency-Key", tc.idempotencyKey)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			require.Equal(t, tc.wantStatusCode, recorder.Code)

			if tc.checkBody != nil {
				var got map[string]any
				require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
				tc.checkBody(got)
			}
		})
	}
}

func TestCreateBatchHandler(t *testing.T) {
	testCases := []struct {
		name           string
		requestBody    gin.H
		buildStubs     func(service *MockService)
		wantStatusCode int
		checkBody      func(body map[string]any)
	}{
		{
			name: "OK",
			requestBody: gin.H{"transfers": []gin.H{
				{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
				{"from_account_id": 2, "to_account_id": 1, "amount": "50"},
			}},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					ProcessBatch(gomock.Any(), gomock.Eq([]domain.TransferRequest{
						{FromAccountID: 1, ToAccountID: 2, Amount: "100"},
						{FromAccountID: 2, ToAccountID: 1, Amount: "50"},
					})).
					Times(1).
					Return([]domain.Transfer{
						{Status: domain.TransferSucceeded},
						{Status: domain.TransferFailed, FailureReason: "Insufficient funds in the source account."},
					}, nil)
			},
			wantStatusCode: http.StatusOK,
			checkBody: func(body map[string]any) {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)

				transfers, ok := data["transfers"].([]any)
				require.True(t, ok)
				require.Len(t, transfers, 2)
			},
		},
		{
			name:        "Missing transfers field",
			requestBody: gin.H{},
			buildStubs: func(service *MockService) {
				service.EXPECT().ProcessBatch(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "Batch too large",
			requestBody: gin.H{"transfers": []gin.H{
				{"from_account_id": 1, "to_account_id": 2, "amount": "100"},
			}},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					ProcessBatch(gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrBatchTooLarge)
			},
			wantStatusCode: http.StatusBadRequest,
			checkBody: func(body map[string]any) {
				require.Equal(t, domain.ErrBatchTooLarge.Error(), body["error"])
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			server, service, _ := newTestServer(t)
			tc.buildStubs(service)

			body, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/transfers/batch", bytes.NewReader(body))
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			require.Equal(t, tc.wantStatusCode, recorder.Code)

			if tc.checkBody != nil {
				var got map[string]any
				require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
				tc.checkBody(got)
			}
		})
	}
}

func TestGetTransferStatusHandler(t *testing.T) {
	transferID := uuid.New()

	testCases := []struct {
		name           string
		url            string
		buildStubs     func(service *MockService)
		wantStatusCode int
	}{
		{
			name: "OK",
			url:  "/transfers/" + transferID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().
					TransferStatus(gomock.Any(), gomock.Eq(transferID)).
					Times(1).
					Return(domain.TransferSucceeded, "Transfer applied", nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "Not found",
			url:  "/transfers/" + transferID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().
					TransferStatus(gomock.Any(), gomock.Eq(transferID)).
					Times(1).
					Return(domain.TransferStatus(""), "", domain.ErrTransferNotFound)
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "Breaker open",
			url:  "/transfers/" + transferID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().
					TransferStatus(gomock.Any(), gomock.Eq(transferID)).
					Times(1).
					Return(domain.TransferStatus(""), "", breaker.ErrOpenState)
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
		{
			name: "Malformed id",
			url:  "/transfers/not-a-uuid",
			buildStubs: func(service *MockService) {
				service.EXPECT().TransferStatus(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			server, service, _ := newTestServer(t)
			tc.buildStubs(service)

			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			require.Equal(t, tc.wantStatusCode, recorder.Code)
		})
	}
}

func TestGetHealthHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "UP", got["status"])
}

func TestGetBreakerStatusHandler(t *testing.T) {
	server, _, monitor := newTestServer(t)

	monitor.EXPECT().
		Metrics().
		Times(1).
		Return(breaker.Metrics{State: "CLOSED", WindowSize: 10, RecordedCalls: 4})

	req := httptest.NewRequest(http.MethodGet, "/circuit-breaker/status", nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))

	data, ok := got["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "CLOSED", data["state"])
	require.Equal(t, float64(10), data["window_size"])
}
