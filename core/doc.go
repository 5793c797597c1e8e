// Package core provides the foundational domain types, interfaces and the
// execution context used by ChainMesh. It defines the core abstractions for:
//
//   - Chain and step definitions (declarative multi-step workflows)
//   - Agent and action definitions (remote HTTP endpoints the engine calls)
//   - Execution results and their status machines (step, chain, batch)
//   - ExecutionContext (append-only state threading step outputs forward)
//   - Conditions (the closed predicate set gating conditional steps)
//   - Pluggable contracts for the registry, agent dispatch, event emission
//     and batch bookkeeping
//
// The package intentionally keeps implementation concerns (registry loading,
// HTTP dispatch, scheduling) out of scope, exposing small interfaces so that
// custom backends can be wired in without dependency cycles.
package core
