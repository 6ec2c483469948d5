// Package profile holds the runtime profile registry.
//
// A runtime profile binds a language to the container image that runs it,
// the command invoked against the injected code file, and the resource
// limits (cpu, memory, process count) and timeout applied to the session.
// The registry is immutable after construction and shared read-only by
// every session.
package profile
