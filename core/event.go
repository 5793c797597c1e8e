package core

import (
	"context"
	"time"
)

// Event is the fire-and-forget message emitted to the external event sink.
// Delivery failure must never fail the orchestrator call that triggered it.
type Event struct {
	EventType string         `json:"eventType"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event authored by source with the current UTC time.
func NewEvent(eventType, source string, data map[string]any) Event {
	return Event{
		EventType: eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewChainCompletedEvent summarizes one chain execution, whatever its
// terminal status.
func NewChainCompletedEvent(res *ExecutionResult) Event {
	return NewEvent("chain.completed", "chainmesh.executor", map[string]any{
		"executionId":     res.ExecutionID,
		"chainName":       res.ChainName,
		"status":          res.Status,
		"totalCost":       res.TotalCost,
		"totalDurationMs": res.Duration,
		"stepCount":       len(res.StepResults),
	})
}

// NewBatchCompletedEvent summarizes a finalized batch.
func NewBatchCompletedEvent(b *BatchExecution) Event {
	return NewEvent("batch.completed", "chainmesh.scheduler", map[string]any{
		"batchId":   b.BatchID,
		"status":    b.Status,
		"completed": b.Completed,
		"failed":    b.Failed,
		"cancelled": b.Cancelled,
		"totalCost": b.TotalCost,
		"taskCount": len(b.Tasks),
	})
}

// EventSink receives engine events. Implementations must be safe for
// concurrent use; callers treat Emit as best-effort and swallow its errors.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}
