package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumahq/chainmesh/batch"
	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
)

// maxRequestBody bounds incoming bodies (4MB).
const maxRequestBody = 4 << 20

// Handlers carries the HTTP handler methods for the orchestrator API.
type Handlers struct {
	registry  core.Registry
	executor  *chain.Executor
	scheduler *batch.Scheduler
	caller    core.AgentCaller
	logger    logging.Logger
}

// NewHandlers wires the handler set to the orchestrator components.
func NewHandlers(registry core.Registry, executor *chain.Executor, scheduler *batch.Scheduler, caller core.AgentCaller, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Handlers{
		registry:  registry,
		executor:  executor,
		scheduler: scheduler,
		caller:    caller,
		logger:    logger,
	}
}

// decodeBody reads a bounded JSON body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return fmt.Errorf("reading request body: %w", ErrInvalidRequest)
	}
	if len(body) > maxRequestBody {
		return fmt.Errorf("request body exceeds %d bytes: %w", maxRequestBody, ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("malformed JSON: %w", ErrInvalidRequest)
	}
	return nil
}

// HandleListChains handles GET /chains.
func (h *Handlers) HandleListChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.registry.Chains()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]chainSummaryDTO, 0, len(chains))
	for _, c := range chains {
		out = append(out, chainSummaryDTO{
			Name:        c.Name,
			Description: c.Description,
			Complexity:  c.Complexity,
			EstCostUSD:  c.EstCostUSD,
			StepCount:   len(c.Steps),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetChain handles GET /chains/{name}.
func (h *Handlers) HandleGetChain(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Chain(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleListAgents handles GET /agents.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.registry.Agents()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// HandleGetAgent handles GET /agents/{name}.
func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.registry.Agent(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// sourceFromRequest validates the exactly-one-of rule and builds the chain
// source.
func sourceFromRequest(req executeRequest) (chain.Source, error) {
	if (req.ChainName == "") == (len(req.Steps) == 0) {
		return chain.Source{}, fmt.Errorf("exactly one of chainName or steps is required: %w", ErrInvalidRequest)
	}
	if req.ChainName != "" {
		return chain.NamedSource(req.ChainName), nil
	}
	steps, err := toDefinitions(req.Steps)
	if err != nil {
		return chain.Source{}, fmt.Errorf("%v: %w", err, ErrInvalidRequest)
	}
	return chain.InlineSource(steps), nil
}

// HandleExecute handles POST /execute: synchronous execution of one chain.
// Step-level failures are reported through the result status, not an error
// response.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	src, err := sourceFromRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.executor.Execute(r.Context(), src, req.Input, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleExecuteParallel handles POST /execute-parallel: async batch
// submission.
func (h *Handlers) HandleExecuteParallel(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	specs := make([]batch.TaskSpec, 0, len(req.Tasks))
	for _, task := range req.Tasks {
		spec := batch.TaskSpec{
			ChainName: task.ChainName,
			Input:     task.Input,
			Options:   task.Options,
		}
		if len(task.Steps) > 0 {
			steps, err := toDefinitions(task.Steps)
			if err != nil {
				writeError(w, fmt.Errorf("%v: %w", err, ErrInvalidRequest))
				return
			}
			spec.Steps = steps
		}
		specs = append(specs, spec)
	}

	id, err := h.scheduler.Submit(specs, req.Concurrency, req.CallbackURL)
	if err != nil {
		writeError(w, fmt.Errorf("%v: %w", err, ErrInvalidRequest))
		return
	}
	writeJSON(w, http.StatusAccepted, batchSubmitResponse{BatchID: id})
}

// HandleBatchStatus handles GET /batch/{id}/status.
func (h *Handlers) HandleBatchStatus(w http.ResponseWriter, r *http.Request) {
	b, err := h.scheduler.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchStatus(b))
}

// HandleBatchResults handles GET /batch/{id}/results.
func (h *Handlers) HandleBatchResults(w http.ResponseWriter, r *http.Request) {
	b, err := h.scheduler.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResults(b))
}

// HandleBatchCancel handles POST /batch/{id}/cancel.
func (h *Handlers) HandleBatchCancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.scheduler.Cancel(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchStatus(b))
}

// HandleCall handles POST /call: a direct, chain-less agent invocation for
// debugging fleet members.
func (h *Handlers) HandleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Agent == "" || req.Action == "" {
		writeError(w, fmt.Errorf("agent and action are required: %w", ErrInvalidRequest))
		return
	}

	resp, err := h.caller.Call(r.Context(), req.Agent, req.Action, req.Params, time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statusCode": resp.StatusCode,
		"output":     resp.Output,
	})
}

// HandleReload handles POST /registry/reload.
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reload(); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("registry reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
