// Package orchestrator coordinates request admission and sandbox
// execution.
//
// It is deliberately thin: admission decides whether a request may run
// and the sandbox manager runs it. The orchestrator guarantees the glue
// invariants. A rejected request never allocates sandbox resources, the
// concurrency slot comes back exactly once per session, and shutdown
// cancels every in-flight session before completing.
package orchestrator
