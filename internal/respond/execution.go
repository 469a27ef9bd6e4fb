package respond

import (
	"time"

	"github.com/google/uuid"

	"shield-respond/internal/schema"
)

// ActionStatus is the terminal state of one executed action.
type ActionStatus string

const (
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
)

// ExecutionStatus tracks the lifecycle of a playbook run.
type ExecutionStatus string

const (
	// ExecutionRunning is the initial state while actions execute.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted means all actions ran without a critical failure.
	// Non-critical action failures do not change the overall status.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed means a critical action failed and the remaining
	// actions were skipped.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionError means the run was cut short by cancellation or an
	// unexpected fault inside the engine itself.
	ExecutionError ExecutionStatus = "error"
)

// ActionResult records the outcome of one action within a run. It is
// created by the engine and never mutated afterward.
type ActionResult struct {
	Type       string         `json:"type"`
	Priority   int            `json:"priority"`
	Status     ActionStatus   `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	ExecutedAt time.Time      `json:"executed_at"`
	DurationMs int64          `json:"duration_ms"`
}

// Execution is the record of one playbook run against one threat. The
// playbook name is a snapshot taken at run time so later renames do not
// rewrite history. Once terminal the record is frozen.
type Execution struct {
	ID           uuid.UUID         `json:"id"`
	PlaybookID   string            `json:"playbook_id"`
	PlaybookName string            `json:"playbook_name"`
	ThreatID     string            `json:"threat_id"`
	ThreatType   schema.ThreatType `json:"threat_type"`
	Severity     schema.Severity   `json:"severity"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  time.Time         `json:"completed_at,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
	Status       ExecutionStatus   `json:"status"`
	Actions      []ActionResult    `json:"actions"`
	Error        string            `json:"error,omitempty"`
}

// ExecutionResult is what Execute and AutoExecute return to the caller.
// Err is set only for runs that never produced a normal Execution record
// (unknown/disabled playbook, no match) or ended in ExecutionError.
type ExecutionResult struct {
	Success   bool       `json:"success"`
	Execution *Execution `json:"execution,omitempty"`
	Err       error      `json:"-"`
}
