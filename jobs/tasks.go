package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayrollGenerate triggers payroll generation for a period.
	TaskPayrollGenerate = "payroll:generate"
	// TaskProjectRecalcCost triggers project cost recalculation.
	TaskProjectRecalcCost = "project:recalc_cost"
	// TaskLedgerIntegrity verifies per-transaction debit/credit balance.
	TaskLedgerIntegrity = "ledger:integrity"
)

// PayrollGeneratePayload names the payroll period to generate.
type PayrollGeneratePayload struct {
	Month   int   `json:"month"`
	Year    int   `json:"year"`
	ActorID int64 `json:"actor_id"`
}

// ProjectRecalcPayload selects which projects to recalculate. A zero
// ProjectID means all active projects.
type ProjectRecalcPayload struct {
	ProjectID int64 `json:"project_id"`
}

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewPayrollGenerateTask constructs an Asynq task for payroll generation.
func NewPayrollGenerateTask(payload PayrollGeneratePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollGenerate, body, asynq.Queue(QueueDefault)), nil
}

// NewProjectRecalcTask constructs an Asynq task for cost recalculation.
func NewProjectRecalcTask(payload ProjectRecalcPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProjectRecalcCost, body, asynq.Queue(QueueDefault)), nil
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity check.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}
