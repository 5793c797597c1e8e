// Package sink contains concrete EventSink implementations. The EventSink
// contract and Event type reside in the core package; select an
// implementation (HTTP webhook, NoOp, or the Recorder used in tests) at
// wiring time.
//
// Delivery is always fire-and-forget from the engine's perspective: callers
// log and swallow Emit errors, so a misbehaving sink can never fail the
// execution that triggered it.
package sink
