// Package server exposes the orchestrator over HTTP: chain and agent
// introspection, synchronous execution, asynchronous batch submission with
// status/results queries, direct agent invocation for debugging and forced
// registry reload.
//
// A failed business step never surfaces as a bare 500: every resolved
// execution returns a well-formed ExecutionResult whose status carries the
// failure. Error statuses are reserved for malformed requests and missing
// resources.
package server
