package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatus_Terminal(t *testing.T) {
	terminal := []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionPartial, ExecutionCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []ExecutionStatus{ExecutionPending, ExecutionRunning} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestAgentResponse_Cost(t *testing.T) {
	tests := []struct {
		name   string
		output any
		want   float64
	}{
		{"float cost", map[string]any{"cost": 0.25}, 0.25},
		{"integer cost", map[string]any{"cost": 2}, 2},
		{"numeric string cost", map[string]any{"cost": "0.5"}, 0.5},
		{"missing cost", map[string]any{"result": "ok"}, 0},
		{"non-numeric cost", map[string]any{"cost": "free"}, 0},
		{"non-object output", "plain text", 0},
		{"nil output", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &AgentResponse{Output: tt.output}
			assert.InDelta(t, tt.want, r.Cost(), 1e-9)
		})
	}
}

func TestNewChainCompletedEvent(t *testing.T) {
	res := &ExecutionResult{
		ExecutionID: "exec-1",
		ChainName:   "demo",
		Status:      ExecutionPartial,
		StepResults: []StepResult{{StepID: "a"}, {StepID: "b"}},
		TotalCost:   1.5,
		Duration:    120,
	}
	ev := NewChainCompletedEvent(res)

	assert.Equal(t, "chain.completed", ev.EventType)
	assert.Equal(t, "chainmesh.executor", ev.Source)
	assert.Equal(t, "exec-1", ev.Data["executionId"])
	assert.Equal(t, ExecutionPartial, ev.Data["status"])
	assert.Equal(t, 2, ev.Data["stepCount"])
	assert.False(t, ev.Timestamp.IsZero())
}

func TestNewBatchCompletedEvent(t *testing.T) {
	b := &BatchExecution{
		BatchID:   "batch-1",
		Status:    ExecutionCompleted,
		Completed: 3,
		Tasks:     []*BatchTask{{}, {}, {}},
	}
	ev := NewBatchCompletedEvent(b)

	assert.Equal(t, "batch.completed", ev.EventType)
	assert.Equal(t, "batch-1", ev.Data["batchId"])
	assert.Equal(t, 3, ev.Data["completed"])
	assert.Equal(t, 3, ev.Data["taskCount"])
}
