// Package ledgerdelivery manages delivery layer of the ledger service.
package ledgerdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
	"github.com/titandynamix/payments/internal/ledgerservice"
	"github.com/titandynamix/payments/pkg/errorspkg"
	"github.com/titandynamix/payments/pkg/web"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	CreateAccount(ctx context.Context, key string, arg domain.CreateAccountParams) (domain.AccountCreation, error)
	Get(ctx context.Context, id int64) (domain.Account, error)
	List(ctx context.Context, pageSize, pageID int32) ([]domain.Account, error)
	Balance(ctx context.Context, id int64) (string, error)
	Entries(ctx context.Context, accountID int64, pageSize, pageID int32) ([]domain.Entry, error)
	TransferStatus(ctx context.Context, transferID uuid.UUID) (domain.TransferStatus, string, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
	engine  ledgerservice.TransferEngine
}

// NewHandler returns ledger handler.
func NewHandler(s Service, engine ledgerservice.TransferEngine) Handler {
	return Handler{service: s, engine: engine}
}

func bindingErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + web.GetErrorMsg(field)
	}

	return "invalid request body"
}

type createAccountRequest struct {
	Name       string `json:"name" binding:"required"`
	Balance    string `json:"balance"`
	TransferID string `json:"transfer_id"`
}

type accountData struct {
	Account domain.Account `json:"account"`
}

// CreateAccount handles http request to create an account idempotently.
func (h *Handler) CreateAccount(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	key := gctx.GetHeader("Idempotency-Key")

	var req createAccountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	creation, err := h.service.CreateAccount(ctx, key, domain.CreateAccountParams{
		Name:       req.Name,
		Balance:    req.Balance,
		TransferID: req.TransferID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingIdempotencyKey),
			errors.Is(err, domain.ErrAccountNameRequired),
			errors.Is(err, domain.ErrNegativeBalance),
			errors.Is(err, domain.ErrInvalidAmount),
			errors.Is(err, domain.ErrInvalidTransferID):
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	if creation.Duplicate {
		gctx.JSON(http.StatusOK, web.Response{Data: gin.H{"message": creation.Response}})
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{creation.Account}})
}

type getAccountRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// GetAccount handles http request to get one account.
func (h *Handler) GetAccount(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req getAccountRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	account, err := h.service.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{account}})
}

// GetBalance handles http request to get one account's balance.
func (h *Handler) GetBalance(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req getAccountRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	balance, err := h.service.Balance(ctx, req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: gin.H{"balance": balance}})
}

type listRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

// ListAccounts handles http request to list accounts.
func (h *Handler) ListAccounts(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	accounts, err := h.service.List(ctx, req.PageSize, req.PageID)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: gin.H{"accounts": accounts}})
}

// ListEntries handles http request to list one account's ledger entries.
func (h *Handler) ListEntries(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var uriReq getAccountRequest
	if err := gctx.ShouldBindUri(&uriReq); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	entries, err := h.service.Entries(ctx, uriReq.ID, req.PageSize, req.PageID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: gin.H{"entries": entries}})
}

type applyTransferRequest struct {
	TransferID    string `json:"transfer_id"`
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
}

// ApplyTransfer handles http request to apply a double-entry transfer with
// an explicit transfer id.
func (h *Handler) ApplyTransfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req applyTransferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	transferID := uuid.Nil

	if req.TransferID != "" {
		var err error

		transferID, err = uuid.Parse(req.TransferID)
		if err != nil {
			gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidTransferID))
			return
		}
	}

	result, err := h.engine.ExecuteTransfer(ctx, domain.ApplyTransferParams{
		TransferID:    transferID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	if !result.Success {
		gctx.JSON(http.StatusUnprocessableEntity, gin.H{"status": "failure", "message": result.Message})
		return
	}

	gctx.JSON(http.StatusOK, gin.H{"status": "success", "message": result.Message})
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

// CreateTransfer handles http request to create and process a transfer.
// With an Idempotency-Key header the transfer id is derived from the key,
// so a retried create resolves to the same ledger idempotency scope.
func (h *Handler) CreateTransfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req createTransferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	transferID := TransferIDForKey(gctx.GetHeader("Idempotency-Key"))

	result, err := h.engine.ExecuteTransfer(ctx, domain.ApplyTransferParams{
		TransferID:    transferID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, transferResponse{
			TransferID: transferID,
			Status:     domain.TransferError,
			Message:    "System error: " + errorspkg.ErrInternal.Error(),
		})

		return
	}

	status := domain.TransferFailed
	if result.Success {
		status = domain.TransferSucceeded
	}

	gctx.JSON(http.StatusOK, transferResponse{
		TransferID: transferID,
		Status:     status,
		Message:    result.Message,
	})
}

type transferStatusRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// GetTransferStatus handles http request to fetch a transfer's status.
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
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, transferResponse{
		TransferID: transferID,
		Status:     status,
		Message:    message,
	})
}

// TransferIDForKey derives the transfer id for a create request. A present
// idempotency key always maps to the same id; otherwise a fresh one is
// generated.
func TransferIDForKey(key string) uuid.UUID {
	if key == "" {
		return uuid.New()
	}

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("payments/transfers/"+key))
}
