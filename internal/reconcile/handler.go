package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires invoice settlement HTTP endpoints.
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

// MountRoutes registers invoice settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.getInvoice)
	r.Post("/payments", h.applyPayment)
	r.Post("/credit-notes", h.draftCreditNote)
	r.Post("/credit-notes/{id}/issue", h.issueCreditNote)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	payment, err := h.service.ApplyPayment(r.Context(), input, actorID(r))
	if err != nil {
		h.respondError(w, err, "apply payment")
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) draftCreditNote(w http.ResponseWriter, r *http.Request) {
	var input CreditNoteInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	note, err := h.service.DraftCreditNote(r.Context(), input)
	if err != nil {
		h.respondError(w, err, "draft credit note")
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) issueCreditNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "invalid id")
		return
	}
	note, err := h.service.IssueCreditNote(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err, "issue credit note")
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "invalid id")
		return
	}
	invoice, payments, notes, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get invoice")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice":      invoice,
		"payments":     payments,
		"credit_notes": notes,
	})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.BadRequest(w, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	buckets, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err, "aging report")
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrCreditNoteNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrCreditNoteIssued), errors.Is(err, ledger.ErrSourceAlreadyLinked):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ledger.ErrUnbalanced):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Internal(w)
	}
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
