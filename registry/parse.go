package registry

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumahq/chainmesh/core"
)

// documentYAML mirrors the on-disk registry format. Timeouts are declared in
// milliseconds and converted to time.Duration on the way into core types.
// YAML is a superset of JSON, so JSON registry documents parse through the
// same structs.
type documentYAML struct {
	Agents map[string]agentYAML `yaml:"agents"`
	Chains []chainYAML          `yaml:"chains"`
}

type agentYAML struct {
	BaseURL     string                `yaml:"baseUrl"`
	Description string                `yaml:"description,omitempty"`
	Actions     map[string]actionYAML `yaml:"actions"`
}

type actionYAML struct {
	Endpoint  string            `yaml:"endpoint"`
	Method    string            `yaml:"method"`
	TimeoutMs int64             `yaml:"timeoutMs,omitempty"`
	Params    map[string]string `yaml:"params,omitempty"`
}

type chainYAML struct {
	Name           string     `yaml:"name"`
	Description    string     `yaml:"description,omitempty"`
	Complexity     string     `yaml:"complexity,omitempty"`
	EstCostUSD     float64    `yaml:"estimatedCostUsd,omitempty"`
	OutputTemplate string     `yaml:"outputTemplate,omitempty"`
	Steps          []stepYAML `yaml:"steps"`
}

type stepYAML struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"type,omitempty"`
	Agent          string         `yaml:"agent,omitempty"`
	Action         string         `yaml:"action,omitempty"`
	Params         map[string]any `yaml:"params,omitempty"`
	RequiredInputs []string       `yaml:"requiredInputs,omitempty"`
	Outputs        []string       `yaml:"outputs,omitempty"`
	TimeoutMs      int64          `yaml:"timeoutMs,omitempty"`
	RetryCount     int            `yaml:"retryCount,omitempty"`
	Optional       bool           `yaml:"optional,omitempty"`
	Condition      *conditionYAML `yaml:"condition,omitempty"`
	Substeps       []stepYAML     `yaml:"substeps,omitempty"`
}

type conditionYAML struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value,omitempty"`
}

// Parse decodes and validates a registry document, returning chain and agent
// definitions keyed by name.
func Parse(raw []byte) (map[string]*core.ChainDefinition, map[string]*core.AgentDefinition, error) {
	var doc documentYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse registry document: %w", err)
	}

	agents := make(map[string]*core.AgentDefinition, len(doc.Agents))
	for name, a := range doc.Agents {
		if a.BaseURL == "" {
			return nil, nil, fmt.Errorf("agent %q: baseUrl is required", name)
		}
		def := &core.AgentDefinition{
			Name:        name,
			BaseURL:     a.BaseURL,
			Description: a.Description,
			Actions:     make(map[string]core.ActionDefinition, len(a.Actions)),
		}
		for actionName, act := range a.Actions {
			if act.Endpoint == "" || act.Method == "" {
				return nil, nil, fmt.Errorf("agent %q action %q: endpoint and method are required", name, actionName)
			}
			def.Actions[actionName] = core.ActionDefinition{
				Endpoint: act.Endpoint,
				Method:   act.Method,
				Timeout:  time.Duration(act.TimeoutMs) * time.Millisecond,
				Params:   act.Params,
			}
		}
		agents[name] = def
	}

	chains := make(map[string]*core.ChainDefinition, len(doc.Chains))
	for _, c := range doc.Chains {
		if c.Name == "" {
			return nil, nil, fmt.Errorf("chain without a name")
		}
		if _, dup := chains[c.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate chain %q", c.Name)
		}
		steps, err := convertSteps(c.Name, c.Steps)
		if err != nil {
			return nil, nil, err
		}
		chains[c.Name] = &core.ChainDefinition{
			Name:           c.Name,
			Description:    c.Description,
			Complexity:     c.Complexity,
			EstCostUSD:     c.EstCostUSD,
			OutputTemplate: c.OutputTemplate,
			Steps:          steps,
		}
	}

	return chains, agents, nil
}

func convertSteps(chain string, in []stepYAML) ([]core.StepDefinition, error) {
	seen := make(map[string]bool, len(in))
	out := make([]core.StepDefinition, 0, len(in))
	for _, s := range in {
		if s.ID == "" {
			return nil, fmt.Errorf("chain %q: step without an id", chain)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("chain %q: duplicate step id %q", chain, s.ID)
		}
		seen[s.ID] = true

		def := core.StepDefinition{
			ID:             s.ID,
			Type:           core.StepType(s.Type),
			Agent:          s.Agent,
			Action:         s.Action,
			Params:         s.Params,
			RequiredInputs: s.RequiredInputs,
			Outputs:        s.Outputs,
			Timeout:        time.Duration(s.TimeoutMs) * time.Millisecond,
			RetryCount:     s.RetryCount,
			Optional:       s.Optional,
		}
		if def.Type == "" {
			def.Type = core.StepTypeCall
		}
		if s.Condition != nil {
			def.Condition = &core.Condition{
				Field:    s.Condition.Field,
				Operator: core.ConditionOperator(s.Condition.Operator),
				Value:    s.Condition.Value,
			}
		}

		switch def.Type {
		case core.StepTypeParallel:
			if len(s.Substeps) == 0 {
				return nil, fmt.Errorf("chain %q: parallel step %q has no substeps", chain, s.ID)
			}
			subs, err := convertSteps(chain, s.Substeps)
			if err != nil {
				return nil, err
			}
			def.Substeps = subs
		case core.StepTypeCall:
			if s.Agent == "" || s.Action == "" {
				return nil, fmt.Errorf("chain %q: step %q needs agent and action", chain, s.ID)
			}
		default:
			return nil, fmt.Errorf("chain %q: step %q has unknown type %q", chain, s.ID, s.Type)
		}

		out = append(out, def)
	}
	return out, nil
}
