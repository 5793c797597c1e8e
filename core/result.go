package core

import "time"

// StepStatus is the per-step state machine:
// pending -> running -> {completed | failed | skipped}.
type StepStatus string

const (
	// StepPending means the step has not started.
	StepPending StepStatus = "pending"
	// StepRunning means the step is dispatching (or fanning out substeps).
	StepRunning StepStatus = "running"
	// StepCompleted means the step produced an output.
	StepCompleted StepStatus = "completed"
	// StepFailed means the step ended with an error.
	StepFailed StepStatus = "failed"
	// StepSkipped means the step's condition evaluated false.
	StepSkipped StepStatus = "skipped"
)

// ExecutionStatus is the chain-level (and batch-task-level) state machine.
type ExecutionStatus string

const (
	// ExecutionPending marks a batch task waiting for semaphore admission.
	ExecutionPending ExecutionStatus = "pending"
	// ExecutionRunning means steps are still being processed.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted means every executed step completed.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed means a non-optional step failed and halted the chain.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionPartial means at least one optional step failed but the
	// chain ran to the end.
	ExecutionPartial ExecutionStatus = "partial"
	// ExecutionCancelled marks a batch task that was cancelled before it
	// was admitted for execution.
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal one.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed ||
		s == ExecutionPartial || s == ExecutionCancelled
}

// StepResult captures the outcome of one step execution.
type StepResult struct {
	StepID   string     `json:"stepId"`
	Agent    string     `json:"agent,omitempty"`
	Action   string     `json:"action,omitempty"`
	Status   StepStatus `json:"status"`
	Output   any        `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
	Duration int64      `json:"durationMs"`
	Cost     float64    `json:"cost"`
	Attempts int        `json:"attempts,omitempty"`
}

// SubstepOutcome is the per-substep entry inside a parallel step's output
// map, keyed by substep id.
type SubstepOutcome struct {
	Status StepStatus `json:"status"`
	Output any        `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ExecutionResult is the outcome of running one chain or ad-hoc step list.
type ExecutionResult struct {
	ExecutionID string          `json:"executionId"`
	ChainName   string          `json:"chainName,omitempty"`
	Status      ExecutionStatus `json:"status"`
	StepResults []StepResult    `json:"stepResults"`
	FinalOutput any             `json:"finalOutput,omitempty"`
	TotalCost   float64         `json:"totalCost"`
	Duration    int64           `json:"totalDurationMs"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
}
