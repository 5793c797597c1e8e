// Package batch contains the scheduler that runs many chain executions
// concurrently under a shared concurrency cap, plus the in-memory
// core.BatchStore implementation. The store is the only mutable shared
// resource in the engine: all counter updates happen under its lock so
// concurrently-finishing tasks never lose increments.
//
// Cancellation is best-effort by design: cancelling a batch marks tasks not
// yet admitted by the semaphore as cancelled, but already-dispatched HTTP
// calls cannot be safely aborted and run to completion.
package batch
