// Package template implements the placeholder rendering layer that threads
// execution context values into step parameters. Templates use {{path}}
// placeholders where path is dot-separated and may index lists with a single
// bracketed integer per segment ("items[0]"). Unresolved placeholders pass
// through unchanged; rendering never fails.
//
// The package depends only on the small Resolver interface so it stays a
// pure, trivially unit-testable leaf.
package template
