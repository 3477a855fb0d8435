// Package orchestratordelivery manages delivery layer of the transfer
// orchestrator.
package orchestratordelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/breaker"
	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/pkg/errorspkg"
	"github.com/titandynamix/payments/pkg/web"
)

// Service provides service layer interface needed by orchestrator
// delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package orchestratordelivery
type Service interface {
	ProcessSingle(ctx context.Context, arg domain.TransferRequest, idempotencyKey string) (domain.Transfer, error)
	ProcessBatch(ctx context.Context, args []domain.TransferRequest) ([]domain.Transfer, error)
	TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error)
}

// Monitor exposes circuit breaker health for the monitoring endpoint.
type Monitor interface {
	State() breaker.State
	Metrics() breaker.Metrics
}

// Handler facilitates orchestrator delivery layer logic.
type Handler struct {
	service Service
	monitor Monitor
}

// NewHandler returns orchestrator handler.
func NewHandler(s Service, monitor Monitor) Handler {
	return Handler{service: s, monitor: monitor}
}

func bindingErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + web.GetErrorMsg(field)
	}

	return "invalid request body"
}

type transferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

type transferData struct {
	ID            uuid.UUID             `json:"id"`
	FromAccountID int64                 `json:"from_account_id"`
	ToAccountID   int64                 `json:"to_account_id"`
	Amount        string                `json:"amount"`
	Status        domain.TransferStatus `json:"status"`
	FailureReason string                `json:"failure_reason,omitempty"`
}

func toTransferData(t domain.Transfer) transferData {
	return transferData{
		ID:            t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Status:        t.Status,
		FailureReason: t.FailureReason,
	}
}

// CreateTransfer handles http request to process one transfer. The
// Idempotency-Key header is mandatory; replays return the original
// outcome.
func (h *Handler) CreateTransfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	key := gctx.GetHeader("Idempotency-Key")
	if key == "" {
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrMissingIdempotencyKey))
		return
	}

	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	transfer, err := h.service.ProcessSingle(ctx, domain.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	}, key)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingAccountID),
			errors.Is(err, domain.ErrSameAccount),
			errors.Is(err, domain.ErrInvalidAmount):
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		default:
			l.Error().Err(err).Send()
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: toTransferData(transfer)})
}

type batchRequest struct {
	Transfers []transferRequest `json:"transfers" binding:"required"`
}

// CreateBatch handles http request to process a batch of transfers.
// Responses align positionally with the request items.
func (h *Handler) CreateBatch(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req batchRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	args := make([]domain.TransferRequest, len(req.Transfers))
	for i, t := range req.Transfers {
		args[i] = domain.TransferRequest{
			FromAccountID: t.FromAccountID,
			ToAccountID:   t.ToAccountID,
			Amount:        t.Amount,
		}
	}

	transfers, err := h.service.ProcessBatch(ctx, args)
	if err != nil {
		if errors.Is(err, domain.ErrBatchTooLarge) {
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}

		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	results := make([]transferData, len(transfers))
	for i, t := range transfers {
		results[i] = toTransferData(t)
	}

	gctx.JSON(http.StatusOK, web.Response{Data: gin.H{"transfers": results}})
}

type transferStatusRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type transferStatusData struct {
	TransferID uuid.UUID             `json:"transfer_id"`
	Status     domain.TransferStatus `json:"status"`
	Message    string                `json:"message"`
}

// GetTransferStatus handles http request to look up a transfer's status
// at the ledger.
func (h *Handler) GetTransferStatus(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req transferStatusRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	transferID := uuid.MustParse(req.ID)

	status, message, err := h.service.TransferStatus(ctx, transferID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransferNotFound):
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case errors.Is(err, breaker.ErrOpenState):
			gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
		default:
			l.Error().Err(err).Send()
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transferStatusData{
		TransferID: transferID,
		Status:     status,
		Message:    message,
	}})
}

// GetHealth handles the liveness probe.
func (h *Handler) GetHealth(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// GetBreakerStatus handles http request to inspect the circuit breaker.
func (h *Handler) GetBreakerStatus(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, web.Response{Data: h.monitor.Metrics()})
}
