package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/observability"
)

// LedgerIntegrityJob scans for transactions whose debits and credits drifted
// apart, which should never happen once a journal is posted.
type LedgerIntegrityJob struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewLedgerIntegrityJob initialises the integrity check handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, metrics: metrics, logger: logger}
}

// Handle reports every unbalanced transaction it finds. Finding one is not a
// handler failure; the job succeeds and the imbalance is logged for follow-up.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.pool.Query(ctx, `
SELECT txn_id, COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM general_ledger_entries
GROUP BY txn_id
HAVING ABS(COALESCE(SUM(debit_amount),0) - COALESCE(SUM(credit_amount),0)) > 0.009`)
	if err != nil {
		j.metrics.JobExecuted(TaskLedgerIntegrity, "error")
		return err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var txnID string
		var debit, credit float64
		if err := rows.Scan(&txnID, &debit, &credit); err != nil {
			j.metrics.JobExecuted(TaskLedgerIntegrity, "error")
			return err
		}
		found++
		j.logger.Error("unbalanced ledger transaction",
			slog.String("txn_id", txnID),
			slog.Float64("debit", debit),
			slog.Float64("credit", credit))
	}
	if err := rows.Err(); err != nil {
		j.metrics.JobExecuted(TaskLedgerIntegrity, "error")
		return err
	}

	j.metrics.JobExecuted(TaskLedgerIntegrity, "ok")
	j.logger.Info("ledger integrity check executed",
		slog.Int("unbalanced", found),
		slog.String("job", "ledger_integrity"))
	return nil
}
