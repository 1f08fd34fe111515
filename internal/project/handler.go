package project

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

// Handler wires project cost HTTP endpoints.
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

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/recalculate", h.recalculate)
	r.Get("/{id}/cost", h.cost)
	r.Post("/{id}/assets", h.assignAsset)
	r.Put("/assets/{id}", h.updateAsset)
	r.Delete("/assets/{id}", h.unassignAsset)
}

type assetAssignmentRequest struct {
	AssetID     int64   `json:"asset_id" validate:"required,gt=0"`
	MonthlyRate float64 `json:"monthly_rate" validate:"required,gt=0"`
	StartDate   string  `json:"start_date" validate:"required"`
	EndDate     string  `json:"end_date"`
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	breakdown, err := h.service.RecalculateCost(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "recalculate project cost")
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) cost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	cost, err := h.service.ActualCost(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "read project cost")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"project_id": id, "actual_cost": cost})
}

func (h *Handler) assignAsset(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	assignment, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	assignment.ProjectID = projectID

	created, err := h.service.AssignAsset(r.Context(), assignment)
	if err != nil {
		h.respondError(w, err, "assign asset")
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	assignment, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	assignment.ID = id

	existing, err := h.service.repo.GetAssetAssignment(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "update asset rental")
		return
	}
	assignment.ProjectID = existing.ProjectID

	if err := h.service.UpdateAssetRental(r.Context(), assignment); err != nil {
		h.respondError(w, err, "update asset rental")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) unassignAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.UnassignAsset(r.Context(), id); err != nil {
		h.respondError(w, err, "unassign asset")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) decodeAssignment(w http.ResponseWriter, r *http.Request) (AssetAssignment, bool) {
	var req assetAssignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return AssetAssignment{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return AssetAssignment{}, false
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.BadRequest(w, "start_date must be YYYY-MM-DD")
		return AssetAssignment{}, false
	}
	assignment := AssetAssignment{
		AssetID:     req.AssetID,
		MonthlyRate: req.MonthlyRate,
		StartDate:   start,
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			httpx.BadRequest(w, "end_date must be YYYY-MM-DD")
			return AssetAssignment{}, false
		}
		assignment.EndDate = &end
	}
	return assignment, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrAssignmentNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidAssignment):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Internal(w)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.BadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
