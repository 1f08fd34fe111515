package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires general-ledger HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.listByReference)
	r.Post("/journal", h.postJournal)
}

type journalLineRequest struct {
	EntryType       string  `json:"entry_type" validate:"required,oneof=EXPENSE PAYABLE RECEIVABLE CASH"`
	AccountName     string  `json:"account_name" validate:"required"`
	Description     string  `json:"description" validate:"required"`
	DebitAmount     float64 `json:"debit_amount" validate:"gte=0"`
	CreditAmount    float64 `json:"credit_amount" validate:"gte=0"`
	EntityID        int64   `json:"entity_id"`
	EntityName      string  `json:"entity_name"`
	ProjectID       *int64  `json:"project_id"`
	TransactionDate string  `json:"transaction_date" validate:"required"`
}

type journalRequest struct {
	ReferenceID int64                `json:"reference_id" validate:"required,gt=0"`
	Lines       []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) listByReference(w http.ResponseWriter, r *http.Request) {
	refType := ReferenceType(r.URL.Query().Get("reference_type"))
	refID, err := strconv.ParseInt(r.URL.Query().Get("reference_id"), 10, 64)
	if err != nil || refID <= 0 || refType == "" {
		httpx.BadRequest(w, "reference_type and reference_id required")
		return
	}
	entries, err := h.service.ListByReference(r.Context(), refType, refID)
	if err != nil {
		h.logger.Error("list ledger entries", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// postJournal accepts a manual balanced journal.
func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	input := JournalInput{
		ReferenceType: ReferenceManual,
		ReferenceID:   req.ReferenceID,
	}
	for _, line := range req.Lines {
		date, err := time.Parse("2006-01-02", line.TransactionDate)
		if err != nil {
			httpx.BadRequest(w, "transaction_date must be YYYY-MM-DD")
			return
		}
		input.Lines = append(input.Lines, LineInput{
			EntryType:       EntryType(line.EntryType),
			AccountName:     line.AccountName,
			Description:     line.Description,
			DebitAmount:     line.DebitAmount,
			CreditAmount:    line.CreditAmount,
			EntityID:        line.EntityID,
			EntityName:      line.EntityName,
			ProjectID:       line.ProjectID,
			TransactionDate: date,
		})
	}

	entries, err := h.service.PostBalancedJournal(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"entries": entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrEntryNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrSourceAlreadyLinked):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.As(err, &verr):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error("post journal", slog.Any("error", err))
		httpx.Internal(w)
	}
}
