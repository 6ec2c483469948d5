// Package sandbox provides isolated execution of untrusted code.
//
// The Manager owns the per-session state machine: it resolves the runtime
// profile, provisions a hardened container through the Runtime boundary,
// races the running code against its deadline, captures bounded output,
// and tears the container down exactly once on every terminal path.
//
// The Runtime interface abstracts the container engine; DockerRuntime is
// the production implementation against the Docker Engine API, and tests
// substitute a fake.
package sandbox
