package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/dispatch"
)

// ErrInvalidRequest marks malformed or self-contradictory request bodies.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorCode labels an API error response.
type ErrorCode string

const (
	CodeInvalidRequest   ErrorCode = "invalid_request"
	CodeChainNotFound    ErrorCode = "chain_not_found"
	CodeAgentNotFound    ErrorCode = "agent_not_found"
	CodeActionNotFound   ErrorCode = "action_not_found"
	CodeBatchNotFound    ErrorCode = "batch_not_found"
	CodeAgentTimeout     ErrorCode = "agent_timeout"
	CodeAgentUnreachable ErrorCode = "agent_unreachable"
	CodeAgentError       ErrorCode = "agent_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// HTTPError pairs a domain error with the status code it maps to.
type HTTPError struct {
	StatusCode int
	Code       ErrorCode
	Err        error
}

func (e *HTTPError) Error() string { return e.Err.Error() }

func (e *HTTPError) Unwrap() error { return e.Err }

// MapError translates a domain error into an HTTPError. Agent-side failures
// surface as gateway statuses so a misbehaving fleet member is
// distinguishable from an orchestrator bug.
func MapError(err error) *HTTPError {
	if err == nil {
		return nil
	}

	var callErr *dispatch.CallError

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return &HTTPError{http.StatusBadRequest, CodeInvalidRequest, err}

	case errors.Is(err, core.ErrUnknownChain):
		return &HTTPError{http.StatusNotFound, CodeChainNotFound, err}

	case errors.Is(err, core.ErrUnknownAgent):
		return &HTTPError{http.StatusNotFound, CodeAgentNotFound, err}

	case errors.Is(err, core.ErrUnknownAction):
		return &HTTPError{http.StatusNotFound, CodeActionNotFound, err}

	case errors.Is(err, core.ErrBatchNotFound):
		return &HTTPError{http.StatusNotFound, CodeBatchNotFound, err}

	case errors.Is(err, core.ErrAgentTimeout):
		return &HTTPError{http.StatusGatewayTimeout, CodeAgentTimeout, err}

	case errors.Is(err, core.ErrAgentUnreachable):
		return &HTTPError{http.StatusBadGateway, CodeAgentUnreachable, err}

	case errors.As(err, &callErr):
		return &HTTPError{http.StatusBadGateway, CodeAgentError, err}

	default:
		return &HTTPError{http.StatusInternalServerError, CodeInternalError, err}
	}
}

// writeJSON encodes v with the given status. Encoding failures are ignored;
// the status line has already been committed.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err and emits the uniform error body.
func writeError(w http.ResponseWriter, err error) {
	httpErr := MapError(err)
	writeJSON(w, httpErr.StatusCode, errorDTO{Code: string(httpErr.Code), Message: httpErr.Error()})
}
