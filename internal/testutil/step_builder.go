package testutil

import "github.com/lumahq/chainmesh/core"

// CallStep builds a minimal dispatch step.
func CallStep(id, agent, action string) core.StepDefinition {
	return core.StepDefinition{ID: id, Type: core.StepTypeCall, Agent: agent, Action: action}
}

// ParallelStep builds a composite step fanning out the given substeps.
func ParallelStep(id string, subs ...core.StepDefinition) core.StepDefinition {
	return core.StepDefinition{ID: id, Type: core.StepTypeParallel, Substeps: subs}
}

// Optional marks a step optional.
func Optional(s core.StepDefinition) core.StepDefinition {
	s.Optional = true
	return s
}

// WithParams attaches params to a step.
func WithParams(s core.StepDefinition, params map[string]any) core.StepDefinition {
	s.Params = params
	return s
}

// WithCondition attaches a condition to a step.
func WithCondition(s core.StepDefinition, field string, op core.ConditionOperator, value any) core.StepDefinition {
	s.Condition = &core.Condition{Field: field, Operator: op, Value: value}
	return s
}

// WithRequiredInputs attaches required context paths to a step.
func WithRequiredInputs(s core.StepDefinition, keys ...string) core.StepDefinition {
	s.RequiredInputs = keys
	return s
}

// WithRetry sets the step's retry count.
func WithRetry(s core.StepDefinition, n int) core.StepDefinition {
	s.RetryCount = n
	return s
}
