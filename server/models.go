package server

import (
	"fmt"
	"time"

	"github.com/lumahq/chainmesh/core"
)

// stepDTO is the wire form of a step definition. Timeouts travel as
// milliseconds.
type stepDTO struct {
	ID             string         `json:"id"`
	Type           string         `json:"type,omitempty"`
	Agent          string         `json:"agent,omitempty"`
	Action         string         `json:"action,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	RequiredInputs []string       `json:"requiredInputs,omitempty"`
	Outputs        []string       `json:"outputs,omitempty"`
	TimeoutMs      int64          `json:"timeoutMs,omitempty"`
	RetryCount     int            `json:"retryCount,omitempty"`
	Optional       bool           `json:"optional,omitempty"`
	Condition      *conditionDTO  `json:"condition,omitempty"`
	Substeps       []stepDTO      `json:"substeps,omitempty"`
}

type conditionDTO struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

func (d stepDTO) toDefinition() (core.StepDefinition, error) {
	if d.ID == "" {
		return core.StepDefinition{}, fmt.Errorf("step without an id")
	}
	def := core.StepDefinition{
		ID:             d.ID,
		Type:           core.StepType(d.Type),
		Agent:          d.Agent,
		Action:         d.Action,
		Params:         d.Params,
		RequiredInputs: d.RequiredInputs,
		Outputs:        d.Outputs,
		Timeout:        time.Duration(d.TimeoutMs) * time.Millisecond,
		RetryCount:     d.RetryCount,
		Optional:       d.Optional,
	}
	if def.Type == "" {
		def.Type = core.StepTypeCall
	}
	if d.Condition != nil {
		def.Condition = &core.Condition{
			Field:    d.Condition.Field,
			Operator: core.ConditionOperator(d.Condition.Operator),
			Value:    d.Condition.Value,
		}
	}
	switch def.Type {
	case core.StepTypeParallel:
		if len(d.Substeps) == 0 {
			return core.StepDefinition{}, fmt.Errorf("parallel step %q has no substeps", d.ID)
		}
		for _, sub := range d.Substeps {
			subDef, err := sub.toDefinition()
			if err != nil {
				return core.StepDefinition{}, err
			}
			def.Substeps = append(def.Substeps, subDef)
		}
	case core.StepTypeCall:
		if d.Agent == "" || d.Action == "" {
			return core.StepDefinition{}, fmt.Errorf("step %q needs agent and action", d.ID)
		}
	default:
		return core.StepDefinition{}, fmt.Errorf("step %q has unknown type %q", d.ID, d.Type)
	}
	return def, nil
}

func toDefinitions(in []stepDTO) ([]core.StepDefinition, error) {
	out := make([]core.StepDefinition, 0, len(in))
	for _, d := range in {
		def, err := d.toDefinition()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// executeRequest is the body of POST /execute. Exactly one of ChainName or
// Steps must be supplied.
type executeRequest struct {
	ChainName string         `json:"chainName,omitempty"`
	Steps     []stepDTO      `json:"steps,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// batchRequest is the body of POST /execute-parallel.
type batchRequest struct {
	Tasks       []executeRequest `json:"tasks"`
	Concurrency int              `json:"concurrency,omitempty"`
	CallbackURL string           `json:"callbackUrl,omitempty"`
}

type batchSubmitResponse struct {
	BatchID string `json:"batchId"`
}

// chainSummaryDTO is one row of GET /chains.
type chainSummaryDTO struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Complexity  string  `json:"complexity,omitempty"`
	EstCostUSD  float64 `json:"estimatedCostUsd,omitempty"`
	StepCount   int     `json:"stepCount"`
}

// taskStatusDTO is the compact per-task row of GET /batch/{id}/status.
type taskStatusDTO struct {
	TaskID    string               `json:"taskId"`
	ChainName string               `json:"chainName,omitempty"`
	Status    core.ExecutionStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
}

// batchStatusResponse is the body of GET /batch/{id}/status.
type batchStatusResponse struct {
	BatchID         string               `json:"batchId"`
	Status          core.ExecutionStatus `json:"status"`
	Concurrency     int                  `json:"concurrency"`
	Completed       int                  `json:"completed"`
	Failed          int                  `json:"failed"`
	Cancelled       int                  `json:"cancelled"`
	TotalCost       float64              `json:"totalCost"`
	ProgressPercent float64              `json:"progressPercent"`
	Tasks           []taskStatusDTO      `json:"tasks"`
	CreatedAt       time.Time            `json:"createdAt"`
	FinishedAt      time.Time            `json:"finishedAt,omitzero"`
}

func toBatchStatus(b *core.BatchExecution) batchStatusResponse {
	resp := batchStatusResponse{
		BatchID:         b.BatchID,
		Status:          b.Status,
		Concurrency:     b.Concurrency,
		Completed:       b.Completed,
		Failed:          b.Failed,
		Cancelled:       b.Cancelled,
		TotalCost:       b.TotalCost,
		ProgressPercent: b.Progress(),
		CreatedAt:       b.CreatedAt,
		FinishedAt:      b.FinishedAt,
	}
	for _, task := range b.Tasks {
		resp.Tasks = append(resp.Tasks, taskStatusDTO{
			TaskID:    task.TaskID,
			ChainName: task.ChainName,
			Status:    task.Status,
			Error:     task.Error,
		})
	}
	return resp
}

// taskResultDTO is one entry of GET /batch/{id}/results.
type taskResultDTO struct {
	TaskID    string                `json:"taskId"`
	ChainName string                `json:"chainName,omitempty"`
	Status    core.ExecutionStatus  `json:"status"`
	Error     string                `json:"error,omitempty"`
	Result    *core.ExecutionResult `json:"result,omitempty"`
}

// batchResultsResponse is the body of GET /batch/{id}/results.
type batchResultsResponse struct {
	BatchID string               `json:"batchId"`
	Status  core.ExecutionStatus `json:"status"`
	Tasks   []taskResultDTO      `json:"tasks"`
}

func toBatchResults(b *core.BatchExecution) batchResultsResponse {
	resp := batchResultsResponse{BatchID: b.BatchID, Status: b.Status}
	for _, task := range b.Tasks {
		resp.Tasks = append(resp.Tasks, taskResultDTO{
			TaskID:    task.TaskID,
			ChainName: task.ChainName,
			Status:    task.Status,
			Error:     task.Error,
			Result:    task.Result,
		})
	}
	return resp
}

// callRequest is the body of POST /call.
type callRequest struct {
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
	TimeoutMs int64          `json:"timeoutMs,omitempty"`
}

// errorDTO is the uniform error body.
type errorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
