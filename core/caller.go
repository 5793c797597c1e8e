package core

import (
	"context"
	"time"
)

// AgentResponse is the decoded outcome of a successful agent call.
type AgentResponse struct {
	// StatusCode is the upstream HTTP status (always 2xx on success).
	StatusCode int

	// Output is the decoded JSON response body. Non-JSON bodies are
	// surfaced as their raw string.
	Output any

	// Raw is the unparsed response body.
	Raw []byte
}

// Cost extracts the numeric "cost" field from the response body, or 0 when
// the agent reports none.
func (r *AgentResponse) Cost() float64 {
	if m, ok := r.Output.(map[string]any); ok {
		if c, ok := toFloat(m["cost"]); ok {
			return c
		}
	}
	return 0
}

// AgentCaller resolves an (agent, action) pair through the registry and
// performs the HTTP call. Errors are classified with the core sentinels:
// ErrUnknownAgent, ErrUnknownAction, ErrAgentTimeout, ErrAgentUnreachable,
// plus the dispatch package's CallError for non-2xx responses.
//
// A timeout of zero means "use the action's declared timeout, or the
// caller's default".
type AgentCaller interface {
	Call(ctx context.Context, agent, action string, params map[string]any, timeout time.Duration) (*AgentResponse, error)
}
