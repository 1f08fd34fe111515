package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PayrollGenerateJob runs payroll generation from the queue.
type PayrollGenerateJob struct {
	service *payroll.Service
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPayrollGenerateJob initialises the payroll generation handler.
func NewPayrollGenerateJob(service *payroll.Service, metrics *observability.Metrics, logger *slog.Logger) *PayrollGenerateJob {
	return &PayrollGenerateJob{service: service, metrics: metrics, logger: logger}
}

// Handle executes the generation for the requested period.
func (j *PayrollGenerateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.service == nil {
		return errors.New("payroll generate: handler not configured")
	}
	var payload PayrollGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	result, err := j.service.Generate(ctx, time.Month(payload.Month), payload.Year, payload.ActorID)
	switch {
	case err == nil:
		j.metrics.JobExecuted(TaskPayrollGenerate, "ok")
		j.logger.Info("payroll generated",
			slog.Int("month", payload.Month),
			slog.Int("year", payload.Year),
			slog.Int("generated", result.Generated),
			slog.Int("skipped", result.Skipped))
		return nil
	case errors.Is(err, payroll.ErrPeriodExists), errors.Is(err, shared.ErrInvalidPeriod):
		// Retrying cannot change the outcome for these.
		j.metrics.JobExecuted(TaskPayrollGenerate, "skipped")
		j.logger.Warn("payroll generation skipped",
			slog.Int("month", payload.Month),
			slog.Int("year", payload.Year),
			slog.Any("error", err))
		return asynq.SkipRetry
	default:
		j.metrics.JobExecuted(TaskPayrollGenerate, "error")
		j.logger.Error("payroll generation failed",
			slog.Int("month", payload.Month),
			slog.Int("year", payload.Year),
			slog.Any("error", err))
		return err
	}
}
