package core

import "time"

// StepType distinguishes ordinary dispatch steps from composite ones.
type StepType string

const (
	// StepTypeCall dispatches a single (agent, action) pair.
	StepTypeCall StepType = "call"
	// StepTypeParallel fans out its Substeps concurrently and aggregates
	// their results into the parent step's output.
	StepTypeParallel StepType = "parallel"
)

// StepDefinition describes one unit of work inside a chain. A step either
// dispatches to an (agent, action) pair or, when Type is StepTypeParallel,
// runs its Substeps concurrently.
type StepDefinition struct {
	ID     string   `json:"id"`
	Type   StepType `json:"type,omitempty"`
	Agent  string   `json:"agent,omitempty"`
	Action string   `json:"action,omitempty"`

	// Params are rendered against the execution context before dispatch.
	// String values may contain {{path}} placeholders.
	Params map[string]any `json:"params,omitempty"`

	// RequiredInputs lists context paths that must resolve before the step
	// may dispatch. A missing path fails the whole chain regardless of
	// Optional.
	RequiredInputs []string `json:"requiredInputs,omitempty"`

	// Outputs is advisory: the keys the step is expected to produce. It is
	// surfaced through registry introspection but never enforced.
	Outputs []string `json:"outputs,omitempty"`

	// Timeout overrides the action's declared timeout for this step.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RetryCount re-dispatches a failed call up to RetryCount additional
	// times with exponential backoff. Zero disables retry.
	RetryCount int `json:"retryCount,omitempty"`

	// Optional steps may fail without halting the chain; the chain then
	// finishes as partial instead of failed.
	Optional bool `json:"optional,omitempty"`

	// Condition gates execution. A false condition records the step as
	// skipped without dispatching.
	Condition *Condition `json:"condition,omitempty"`

	// Substeps are only consulted when Type is StepTypeParallel.
	Substeps []StepDefinition `json:"substeps,omitempty"`
}

// IsParallel reports whether the step fans out substeps.
func (s StepDefinition) IsParallel() bool { return s.Type == StepTypeParallel }

// ChainDefinition is a named, ordered sequence of steps. Definitions are
// immutable once loaded; the registry owns them.
type ChainDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Complexity  string           `json:"complexity,omitempty"`
	EstCostUSD  float64          `json:"estimatedCostUsd,omitempty"`
	Steps       []StepDefinition `json:"steps"`

	// OutputTemplate, when set, is rendered against the final context to
	// produce ExecutionResult.FinalOutput. Otherwise the last executed
	// step's output is used.
	OutputTemplate string `json:"outputTemplate,omitempty"`
}

// ActionDefinition describes one callable endpoint of an agent. Endpoint may
// contain {key} path parameters which are consumed from call params.
type ActionDefinition struct {
	Endpoint string        `json:"endpoint"`
	Method   string        `json:"method"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	// Params documents the accepted parameters for introspection.
	Params map[string]string `json:"params,omitempty"`
}

// AgentDefinition maps a logical agent name to its base URL and action table.
type AgentDefinition struct {
	Name        string                      `json:"name"`
	BaseURL     string                      `json:"baseUrl"`
	Description string                      `json:"description,omitempty"`
	Actions     map[string]ActionDefinition `json:"actions"`
}

// Registry is the read-mostly source of chain and agent definitions. The
// executor treats it as immutable; implementations may refresh their backing
// data on a TTL without coordination.
type Registry interface {
	// Chain returns the definition for name or ErrUnknownChain.
	Chain(name string) (*ChainDefinition, error)

	// Chains lists all known chain definitions.
	Chains() ([]*ChainDefinition, error)

	// Agent returns the definition for name or ErrUnknownAgent.
	Agent(name string) (*AgentDefinition, error)

	// Agents lists all known agent definitions.
	Agents() ([]*AgentDefinition, error)

	// Reload drops any cached state and re-reads the backing source.
	Reload() error
}
