package payroll

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Enqueuer submits a generation run to the background queue.
type Enqueuer interface {
	EnqueuePayrollGenerate(ctx context.Context, month, year int, actorID int64) error
}

// Handler wires payroll HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	enqueuer  Enqueuer
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

// WithEnqueuer enables the asynchronous generation endpoint.
func (h *Handler) WithEnqueuer(e Enqueuer) {
	h.enqueuer = e
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/generate", h.generate)
	r.Post("/generate-async", h.generateAsync)
	r.Post("/clear-period", h.clearPeriod)
	r.Get("/entries", h.listEntries)
	r.Get("/entries/{id}", h.getEntry)
	r.Get("/entries/{id}/payslip", h.payslip)
	r.Post("/entries/{id}/mark-paid", h.markPaid)
	r.Post("/entries/{id}/additions", h.recordAddition)
	r.Post("/entries/{id}/deductions", h.recordDeduction)
	r.Put("/additions/{id}", h.updateAddition)
	r.Delete("/additions/{id}", h.deleteAddition)
	r.Put("/deductions/{id}", h.updateDeduction)
	r.Delete("/deductions/{id}", h.deleteDeduction)
}

type periodRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2200"`
}

type childRequest struct {
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	result, err := h.service.Generate(r.Context(), time.Month(req.Month), req.Year, actorID(r))
	if err != nil {
		h.respondError(w, err, "generate payroll")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"generated": result.Generated,
		"skipped":   result.Skipped,
	})
}

func (h *Handler) generateAsync(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background queue not configured")
		return
	}
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	if err := h.enqueuer.EnqueuePayrollGenerate(r.Context(), req.Month, req.Year, actorID(r)); err != nil {
		h.logger.Error("enqueue payroll generation", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"queued": true,
		"month":  req.Month,
		"year":   req.Year,
	})
}

func (h *Handler) clearPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	result, err := h.service.ClearPeriod(r.Context(), time.Month(req.Month), req.Year, actorID(r))
	if err != nil {
		h.respondError(w, err, "clear payroll period")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries_deleted": result.Entries,
		"gl_rows_deleted": result.GLRows,
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))

	entries, err := h.service.ListEntries(r.Context(), time.Month(month), year)
	if err != nil {
		h.respondError(w, err, "list payroll entries")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, additions, deductions, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get payroll entry")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entry":      entry,
		"additions":  additions,
		"deductions": deductions,
	})
}

func (h *Handler) payslip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, additions, deductions, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get payroll entry")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="payslip-`+strconv.FormatInt(entry.ID, 10)+`.pdf"`)
	if err := RenderPayslip(w, entry, additions, deductions); err != nil {
		h.logger.Error("render payslip", slog.Any("error", err), slog.Int64("entry_id", id))
	}
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkPaid(r.Context(), id, actorID(r)); err != nil {
		h.respondError(w, err, "mark payroll entry paid")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": string(StatusPaid)})
}

func (h *Handler) recordAddition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	addition, err := h.service.RecordAddition(r.Context(), id, req.Description, req.Amount)
	if err != nil {
		h.respondError(w, err, "record addition")
		return
	}
	httpx.JSON(w, http.StatusCreated, addition)
}

func (h *Handler) recordDeduction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	deduction, err := h.service.RecordDeduction(r.Context(), id, req.Description, req.Amount)
	if err != nil {
		h.respondError(w, err, "record deduction")
		return
	}
	httpx.JSON(w, http.StatusCreated, deduction)
}

func (h *Handler) updateAddition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateAddition(r.Context(), id, req.Description, req.Amount); err != nil {
		h.respondError(w, err, "update addition")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) updateDeduction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeChild(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateDeduction(r.Context(), id, req.Description, req.Amount); err != nil {
		h.respondError(w, err, "update deduction")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteAddition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAddition(r.Context(), id); err != nil {
		h.respondError(w, err, "delete addition")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) deleteDeduction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDeduction(r.Context(), id); err != nil {
		h.respondError(w, err, "delete deduction")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) decodeChild(w http.ResponseWriter, r *http.Request) (childRequest, bool) {
	var req childRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return childRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return childRequest{}, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	var verr *ledger.ValidationError
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrChildNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrPeriodExists), errors.Is(err, shared.ErrLockHeld),
		errors.Is(err, ledger.ErrSourceAlreadyLinked):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, shared.ErrInvalidPeriod), errors.Is(err, ErrInvalidAmount),
		errors.As(err, &verr), errors.Is(err, ledger.ErrUnbalanced):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Internal(w)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
