// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer ChainMeshLogger with contextual
// helpers (execution, batch, component) and domain specific logging helpers
// for agent calls, chain executions and batches.
package logging
