// Package registry contains the read-mostly provider of chain and agent
// definitions. The core.Registry contract lives in the core package; this
// package supplies a document-backed implementation that parses a YAML (or
// JSON) registry document, caches the parsed definitions, refreshes them
// when a TTL lapses and supports forced reload.
//
// Rationale: keeps domain contracts centralized while allowing pluggable
// backends (config services, databases) to be added without introducing
// dependency cycles.
package registry
