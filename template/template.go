package template

import (
	"regexp"
	"strings"
)

// Resolver resolves a dotted path to its string substitution form. The
// second return is false when the path does not resolve, in which case the
// placeholder is left untouched. core.ExecutionContext satisfies this.
type Resolver interface {
	Lookup(path string) (string, bool)
}

// placeholderPattern matches {{ path }} with optional inner whitespace. The
// path accepts identifier segments separated by dots plus bracketed integer
// indices for list access.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_$-]+(?:\.[A-Za-z0-9_$-]+|\[\d+\])*)\s*\}\}`)

// Render substitutes every {{path}} occurrence in text with the value the
// resolver yields for that path. Scalars substitute as plain text,
// non-scalars as canonical compact JSON. Unresolved paths leave the literal
// placeholder unchanged. Pure function of its inputs.
func Render(text string, r Resolver) string {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := r.Lookup(path); ok {
			return val
		}
		return match
	})
}

// RenderDeep applies Render to every string found inside arbitrarily nested
// maps and lists, returning a new structure. Non-string scalars are returned
// untouched; the input is never mutated.
func RenderDeep(value any, r Resolver) any {
	switch v := value.(type) {
	case string:
		return Render(v, r)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			out[k] = RenderDeep(el, r)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = RenderDeep(el, r)
		}
		return out
	default:
		return value
	}
}

// RenderParams renders a step's parameter map against the resolver. A nil
// map yields an empty, non-nil map so dispatch code can consume it directly.
func RenderParams(params map[string]any, r Resolver) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return RenderDeep(params, r).(map[string]any)
}
