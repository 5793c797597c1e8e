// Package chain implements the executor that runs one chain (or an ad-hoc
// step list) to completion. It owns the per-step state machine
// (pending -> running -> completed|failed|skipped), condition gating,
// required-input enforcement, bounded retry with exponential backoff,
// parallel substep fan-out and cost accumulation.
//
// Step-level errors are recovered locally into the step's result; only a
// non-optional failure (or a required-input violation, which is fatal
// regardless of optionality) halts the chain. Every execution, successful or
// not, yields a well-formed ExecutionResult and emits one best-effort
// completion event.
package chain
