package sandbox

import (
	"context"
	"io"
)

// CodePath is where the submitted code lands inside every container.
// Profile commands reference it by its base name, relative to the workdir.
const CodePath = "/tmp/code"

// Limits are the resource bounds applied at container creation time and
// enforced by the runtime, not by this package.
type Limits struct {
	CPUs        float64
	MemoryBytes int64
	PidsLimit   int64
}

// CreateSpec describes one isolated execution environment: the image, the
// command run inside it, and the code made available at CodePath before
// the container starts.
type CreateSpec struct {
	Image   string
	Command []string
	Env     []string
	Limits  Limits
	Code    []byte
}

// Runtime is the container-runtime boundary. Handles are opaque; every
// handle returned by Create must eventually be passed to Remove exactly
// once, whatever happened in between.
type Runtime interface {
	// Create provisions a stopped container with the code injected and
	// limits applied, returning its handle.
	Create(ctx context.Context, spec CreateSpec) (string, error)

	// Start begins execution.
	Start(ctx context.Context, handle string) error

	// StreamLogs copies the container's combined stdout/stderr into w in
	// arrival order, returning once the stream ends.
	StreamLogs(ctx context.Context, handle string, w io.Writer) error

	// Wait blocks until the container stops and returns its exit code.
	Wait(ctx context.Context, handle string) (int64, error)

	// Kill force-terminates the container. Killing an already-stopped
	// container is not an error.
	Kill(ctx context.Context, handle string) error

	// Remove deletes the container and its resources.
	Remove(ctx context.Context, handle string) error
}
