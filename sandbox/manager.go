package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snipbox/snipbox/config"
	"github.com/snipbox/snipbox/profile"
)

// Manager drives the lifecycle of execution sessions: it provisions one
// container per admitted request, enforces the deadline and output cap,
// and guarantees the container is torn down on every terminal path.
type Manager struct {
	logger     *zap.Logger
	runtime    Runtime
	registry   *profile.Registry
	outputCap  int
	maxTimeout time.Duration
	killGrace  time.Duration
}

// NewManager creates a lifecycle manager. maxTimeout is the hard ceiling
// over per-profile and per-request timeouts; killGrace bounds how long a
// forced termination may take to be acknowledged.
func NewManager(logger *zap.Logger, runtime Runtime, registry *profile.Registry,
	outputCap int, maxTimeout, killGrace time.Duration) *Manager {
	return &Manager{
		logger:     logger,
		runtime:    runtime,
		registry:   registry,
		outputCap:  outputCap,
		maxTimeout: maxTimeout,
		killGrace:  killGrace,
	}
}

// NewManagerFromConfig creates a manager from the process configuration.
func NewManagerFromConfig(logger *zap.Logger, runtime Runtime, registry *profile.Registry, cfg *config.Config) *Manager {
	return NewManager(logger, runtime, registry, cfg.Execution.OutputLimitBytes, cfg.MaxTimeout(), cfg.KillGrace())
}

// deadline picks the effective timeout: the profile's, lowered by the
// request cap if one was given, never above the configured ceiling.
func (m *Manager) deadline(prof *profile.Profile, req Request) time.Duration {
	timeout := prof.Timeout
	if req.TimeoutCap > 0 && req.TimeoutCap < timeout {
		timeout = req.TimeoutCap
	}
	if m.maxTimeout > 0 && timeout > m.maxTimeout {
		timeout = m.maxTimeout
	}
	return timeout
}

type waitOutcome struct {
	exitCode int64
	err      error
}

// Run executes one admitted request through the full session state
// machine and returns its terminal result. Cancelling ctx aborts the
// session; the container is killed and removed before Run returns in
// every case.
func (m *Manager) Run(ctx context.Context, req Request) Result {
	log := m.logger.With(zap.String("request_id", req.ID), zap.String("language", req.Language))

	// Pending → Creating requires a known language; nothing has touched
	// the runtime yet, so this rejection is free.
	prof, ok := m.registry.Lookup(req.Language)
	if !ok {
		log.Info("unsupported language")
		return Result{Status: StatusFailed, Reason: FailureUnsupportedLanguage}
	}

	spec := CreateSpec{
		Image:   prof.Image,
		Command: prof.Command,
		Env:     prof.Env,
		Limits: Limits{
			CPUs:        prof.CPUs,
			MemoryBytes: prof.MemoryBytes,
			PidsLimit:   prof.PidsLimit,
		},
		Code: []byte(req.Code),
	}

	handle, err := m.runtime.Create(ctx, spec)
	if err != nil {
		log.Warn("container creation failed, retrying once", zap.Error(err))
		handle, err = m.runtime.Create(ctx, spec)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{Status: StatusCancelled}
		}
		log.Error("container creation failed twice", zap.Error(err))
		return Result{Status: StatusFailed, Reason: FailureInfrastructure}
	}

	// From here on the handle exists and must be released exactly once,
	// whatever path Run leaves by.
	defer m.teardown(handle, log)

	log = log.With(zap.String("container", handle))

	out := newBoundedBuffer(m.outputCap)

	// The log stream must survive the caller's deadline so output that
	// was in flight when the container was killed can still be drained.
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- m.runtime.StreamLogs(streamCtx, handle, out)
	}()

	if err := m.runtime.Start(ctx, handle); err != nil {
		if ctx.Err() != nil {
			return Result{Status: StatusCancelled}
		}
		log.Error("container start failed", zap.Error(err))
		return Result{Status: StatusFailed, Reason: FailureInfrastructure}
	}

	// Waiting before the container starts would report a not-running state
	// immediately, so the wait is armed only after a successful start.
	waitCtx, stopWait := context.WithCancel(context.Background())
	defer stopWait()
	waitCh := make(chan waitOutcome, 1)
	go func() {
		code, werr := m.runtime.Wait(waitCtx, handle)
		waitCh <- waitOutcome{exitCode: code, err: werr}
	}()

	timeout := m.deadline(prof, req)
	log.Info("session running", zap.Duration("timeout", timeout))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result Result
	select {
	case w := <-waitCh:
		if w.err != nil {
			log.Error("container wait failed", zap.Error(w.err))
			result = Result{Status: StatusFailed, Reason: FailureInfrastructure}
		} else {
			log.Info("session completed", zap.Int64("exit_code", w.exitCode))
			result = Result{Status: StatusCompleted, ExitCode: w.exitCode}
		}

	case <-timer.C:
		log.Warn("deadline exceeded, force-stopping container")
		m.forceStop(handle, waitCh, log)
		result = Result{Status: StatusTimedOut}

	case <-ctx.Done():
		log.Warn("session cancelled, force-stopping container")
		m.forceStop(handle, waitCh, log)
		result = Result{Status: StatusCancelled}
	}

	// The container has stopped; give the streamer a bounded chance to
	// flush whatever output is still buffered before reading the capture.
	select {
	case <-streamDone:
	case <-time.After(m.killGrace):
		stopStream()
	}

	result.Output = out.String()
	result.Truncated = out.Truncated()
	if result.Truncated {
		log.Info("output truncated", zap.Int64("dropped_bytes", out.Dropped()))
	}
	return result
}

// forceStop kills the container and waits within the grace period for the
// runtime to confirm it stopped. The session does not report terminal
// state until the kill has been issued and acknowledged or the grace
// period has run out.
func (m *Manager) forceStop(handle string, waitCh <-chan waitOutcome, log *zap.Logger) {
	killCtx, cancel := context.WithTimeout(context.Background(), m.killGrace)
	defer cancel()

	if err := m.runtime.Kill(killCtx, handle); err != nil {
		log.Error("failed to kill container", zap.Error(err))
		return
	}

	select {
	case <-waitCh:
	case <-killCtx.Done():
		log.Error("container did not acknowledge kill within grace period")
	}
}

// teardown removes the container. It runs on its own context so shutdown
// of the caller cannot skip it; a failed removal is logged as a leak for
// external reconciliation and never alters the session result.
func (m *Manager) teardown(handle string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), m.killGrace)
	defer cancel()

	if err := m.runtime.Kill(ctx, handle); err != nil {
		log.Warn("teardown kill failed", zap.Error(err))
	}
	if err := m.runtime.Remove(ctx, handle); err != nil {
		log.Error("container leaked: removal failed", zap.String("container", handle), zap.Error(err))
		return
	}
	log.Info("container removed")
}
