package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/project"
)

// ProjectRecalcJob refreshes project actual costs from the queue.
type ProjectRecalcJob struct {
	service *project.Service
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewProjectRecalcJob initialises the cost recalculation handler.
func NewProjectRecalcJob(service *project.Service, metrics *observability.Metrics, logger *slog.Logger) *ProjectRecalcJob {
	return &ProjectRecalcJob{service: service, metrics: metrics, logger: logger}
}

// Handle recalculates a single project, or every active project when the
// payload names none.
func (j *ProjectRecalcJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.service == nil {
		return errors.New("project recalc: handler not configured")
	}
	var payload ProjectRecalcPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if payload.ProjectID > 0 {
		breakdown, err := j.service.RecalculateCost(ctx, payload.ProjectID)
		if err != nil {
			j.metrics.JobExecuted(TaskProjectRecalcCost, "error")
			j.logger.Error("project cost recalc failed",
				slog.Int64("project_id", payload.ProjectID),
				slog.Any("error", err))
			return err
		}
		j.metrics.JobExecuted(TaskProjectRecalcCost, "ok")
		j.logger.Info("project cost recalculated",
			slog.Int64("project_id", payload.ProjectID),
			slog.Float64("total", breakdown.Total))
		return nil
	}

	refreshed, err := j.service.RecalculateActiveProjects(ctx)
	if err != nil {
		j.metrics.JobExecuted(TaskProjectRecalcCost, "error")
		j.logger.Error("active project recalc failed", slog.Any("error", err))
		return err
	}
	j.metrics.JobExecuted(TaskProjectRecalcCost, "ok")
	j.logger.Info("active project costs recalculated", slog.Int("refreshed", refreshed))
	return nil
}
