package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrorSink records persistence failures into error_logs. Writes are
// best-effort: a sink failure is logged and swallowed so it can never mask
// the original error or recurse when the store itself is down.
type ErrorSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewErrorSink returns an ErrorSink backed by the given pool.
func NewErrorSink(pool *pgxpool.Pool, logger *slog.Logger) *ErrorSink {
	return &ErrorSink{pool: pool, logger: logger}
}

// Capture writes the error with its originating operation. Nil sink and nil
// error are both no-ops.
func (s *ErrorSink) Capture(ctx context.Context, operation string, err error) {
	if s == nil || err == nil {
		return
	}
	_, sinkErr := s.pool.Exec(ctx,
		`INSERT INTO error_logs (operation, message, occurred_at) VALUES ($1, $2, $3)`,
		operation, err.Error(), time.Now().UTC())
	if sinkErr != nil && s.logger != nil {
		s.logger.Warn("error sink write failed", slog.String("operation", operation), slog.Any("error", sinkErr))
	}
}
