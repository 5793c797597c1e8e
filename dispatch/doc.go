// Package dispatch resolves (agent, action) pairs through the registry and
// performs the HTTP call. It owns an explicit, injectable HTTP client with
// its own lifecycle rather than a package-level singleton, so tests can
// substitute a mock transport and the orchestrator can drain connections at
// shutdown.
//
// Dispatch errors are classified: core.ErrUnknownAgent, core.ErrUnknownAction,
// core.ErrAgentTimeout, core.ErrAgentUnreachable, and *CallError for non-2xx
// upstream responses. Retry policy deliberately lives in the chain executor,
// not here.
package dispatch
