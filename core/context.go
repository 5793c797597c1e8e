package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ExecutionContext is the append-only state threaded through a chain run. It
// holds three namespaces: "input" (caller-supplied), "steps" (keyed by step
// id, appended as steps complete) and "options" (caller-supplied flags).
//
// Internally the context is a single compact JSON document. Reads resolve
// dotted paths with gjson; writes append step results with sjson. Step N may
// read anything produced by steps 0..N-1 but never anything later; parallel
// substeps each receive a Clone of the pre-step document and their results
// are merged back in one write once all substeps finish.
type ExecutionContext struct {
	raw []byte
}

// NewExecutionContext seeds a context with caller input and options. Nil maps
// are treated as empty.
func NewExecutionContext(input, options map[string]any) (*ExecutionContext, error) {
	if input == nil {
		input = map[string]any{}
	}
	if options == nil {
		options = map[string]any{}
	}
	raw, err := json.Marshal(map[string]any{
		"input":   input,
		"steps":   map[string]any{},
		"options": options,
	})
	if err != nil {
		return nil, fmt.Errorf("seed execution context: %w", err)
	}
	return &ExecutionContext{raw: raw}, nil
}

// toGJSONPath converts template path syntax (dots plus single bracketed list
// indices, e.g. "steps.fetch.output.items[0].name") into gjson syntax
// ("steps.fetch.output.items.0.name").
func toGJSONPath(path string) string {
	if !strings.ContainsRune(path, '[') {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch r {
		case '[':
			b.WriteRune('.')
		case ']':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Exists reports whether path resolves to any value.
func (c *ExecutionContext) Exists(path string) bool {
	return gjson.GetBytes(c.raw, toGJSONPath(path)).Exists()
}

// Value resolves path to its decoded Go value. The second return is false
// when the path does not resolve.
func (c *ExecutionContext) Value(path string) (any, bool) {
	r := gjson.GetBytes(c.raw, toGJSONPath(path))
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// Lookup resolves path to its string substitution form: scalars render as
// their plain text, non-scalars as canonical compact JSON. The second return
// is false when the path does not resolve.
func (c *ExecutionContext) Lookup(path string) (string, bool) {
	r := gjson.GetBytes(c.raw, toGJSONPath(path))
	if !r.Exists() {
		return "", false
	}
	if r.Type == gjson.JSON {
		return r.Raw, true
	}
	return r.String(), true
}

// resolve returns the raw gjson result for condition evaluation.
func (c *ExecutionContext) resolve(path string) gjson.Result {
	return gjson.GetBytes(c.raw, toGJSONPath(path))
}

// RecordStep appends a completed (or failed) step's outcome under
// steps.<stepID>. Existing step entries are never rewritten by later steps;
// calling RecordStep twice for the same id is a programming error.
func (c *ExecutionContext) RecordStep(stepID string, status StepStatus, output any) error {
	raw, err := sjson.SetBytes(c.raw, "steps."+stepID, map[string]any{
		"status": status,
		"output": output,
	})
	if err != nil {
		return fmt.Errorf("record step %q: %w", stepID, err)
	}
	c.raw = raw
	return nil
}

// RecordFailure marks a step as failed, attaching the error text instead of
// an output. Later steps may condition on steps.<id>.status.
func (c *ExecutionContext) RecordFailure(stepID, errMsg string) error {
	raw, err := sjson.SetBytes(c.raw, "steps."+stepID, map[string]any{
		"status": StepFailed,
		"error":  errMsg,
	})
	if err != nil {
		return fmt.Errorf("record failure %q: %w", stepID, err)
	}
	c.raw = raw
	return nil
}

// RecordSkip marks a step as skipped without attaching an output.
func (c *ExecutionContext) RecordSkip(stepID string) error {
	raw, err := sjson.SetBytes(c.raw, "steps."+stepID, map[string]any{
		"status": StepSkipped,
	})
	if err != nil {
		return fmt.Errorf("record skip %q: %w", stepID, err)
	}
	c.raw = raw
	return nil
}

// Clone returns an independent snapshot of the context. Used to give each
// parallel substep the pre-step view of the world.
func (c *ExecutionContext) Clone() *ExecutionContext {
	raw := make([]byte, len(c.raw))
	copy(raw, c.raw)
	return &ExecutionContext{raw: raw}
}

// Raw exposes the underlying compact JSON document.
func (c *ExecutionContext) Raw() []byte { return c.raw }
