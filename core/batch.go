package core

import "time"

// BatchTask is one unit of a batch submission: either a named chain or an
// ad-hoc step list, plus its input. Status and Result are written by the
// scheduler as the task progresses.
type BatchTask struct {
	TaskID    string           `json:"taskId"`
	ChainName string           `json:"chainName,omitempty"`
	Steps     []StepDefinition `json:"steps,omitempty"`
	Input     map[string]any   `json:"input,omitempty"`
	Options   map[string]any   `json:"options,omitempty"`
	Status    ExecutionStatus  `json:"status"`
	Result    *ExecutionResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// BatchExecution tracks a set of tasks run under a shared concurrency cap.
// Counters are only mutated by the scheduler under the store's lock.
type BatchExecution struct {
	BatchID     string          `json:"batchId"`
	Tasks       []*BatchTask    `json:"tasks"`
	Concurrency int             `json:"concurrency"`
	Status      ExecutionStatus `json:"status"`
	Completed   int             `json:"completed"`
	Failed      int             `json:"failed"`
	Cancelled   int             `json:"cancelled"`
	TotalCost   float64         `json:"totalCost"`
	CallbackURL string          `json:"callbackUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinishedAt  time.Time       `json:"finishedAt,omitzero"`
}

// Progress returns the percentage of tasks in a terminal state.
func (b *BatchExecution) Progress() float64 {
	if len(b.Tasks) == 0 {
		return 100
	}
	done := b.Completed + b.Failed + b.Cancelled
	return float64(done) / float64(len(b.Tasks)) * 100
}

// BatchStore is the only mutable shared resource in the engine. It owns
// batch records and serializes all mutation so concurrently-finishing tasks
// never lose counter updates. Implementations must be safe for concurrent
// use.
type BatchStore interface {
	// Create stores a new batch record.
	Create(b *BatchExecution) error

	// Get returns a deep snapshot of the batch or ErrBatchNotFound.
	Get(batchID string) (*BatchExecution, error)

	// Update applies fn to the stored batch under the store's lock and
	// returns ErrBatchNotFound when the id is unknown. The callback must
	// not retain references to the batch after returning.
	Update(batchID string, fn func(b *BatchExecution)) error
}
