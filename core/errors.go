package core

import "errors"

// Sentinel errors shared across the engine. Implementations wrap these with
// contextual detail via fmt.Errorf and %w; callers classify with errors.Is.
var (
	// ErrUnknownChain is returned when a chain name is not in the registry.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrUnknownAgent is returned when an agent name is not in the registry.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownAction is returned when an agent has no action by that name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingRequiredInput is returned when a step's required context
	// path does not resolve. Fatal to the chain regardless of Optional.
	ErrMissingRequiredInput = errors.New("missing required input")

	// ErrAgentTimeout is returned when a dispatched call exceeds its
	// effective timeout.
	ErrAgentTimeout = errors.New("agent call timed out")

	// ErrAgentUnreachable is returned for transport-level dispatch failures.
	ErrAgentUnreachable = errors.New("agent unreachable")

	// ErrConditionEval is returned when a step condition cannot be
	// evaluated (unknown operator or non-comparable operands).
	ErrConditionEval = errors.New("condition evaluation failed")

	// ErrBatchNotFound is returned by batch queries for unknown batch ids.
	ErrBatchNotFound = errors.New("batch not found")
)
