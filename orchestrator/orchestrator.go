package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snipbox/snipbox/admission"
	"github.com/snipbox/snipbox/sandbox"
)

// Runner executes one admitted request to a terminal result. The sandbox
// lifecycle manager is the production implementation.
type Runner interface {
	Run(ctx context.Context, req sandbox.Request) sandbox.Result
}

// Result is what the chat collaborator gets back: either an admission
// rejection or the terminal outcome of one session.
type Result struct {
	sandbox.Result
	Rejection *admission.Rejection
}

// Rejected reports whether the request was refused before any sandbox
// resources were allocated.
func (r Result) Rejected() bool {
	return r.Rejection != nil
}

// Orchestrator composes admission and the sandbox lifecycle: one Submit is
// one session, the concurrency slot is released exactly once however the
// session ends, and shutdown cancels every in-flight session before
// returning.
type Orchestrator struct {
	logger   *zap.Logger
	admitter *admission.Controller
	runner   Runner

	mu       sync.Mutex
	draining bool
	cancels  map[string]context.CancelFunc
	inflight sync.WaitGroup
}

// New creates an orchestrator.
func New(logger *zap.Logger, admitter *admission.Controller, runner Runner) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		admitter: admitter,
		runner:   runner,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit runs one execution request end to end. Rejections return
// immediately and never touch the container runtime.
func (o *Orchestrator) Submit(ctx context.Context, req sandbox.Request) Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return Result{Result: sandbox.Result{Status: sandbox.StatusCancelled}}
	}
	o.mu.Unlock()

	ticket, rejection, err := o.admitter.Admit(ctx, req.RequestorID, len(req.Code))
	if rejection != nil {
		o.logger.Info("request rejected",
			zap.String("request_id", req.ID),
			zap.String("requestor", req.RequestorID),
			zap.String("reason", string(rejection.Reason)))
		return Result{Rejection: rejection}
	}
	if err != nil {
		// The caller gave up while queued.
		return Result{Result: sandbox.Result{Status: sandbox.StatusCancelled}}
	}
	// The slot must come back whatever happens below.
	defer ticket.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return Result{Result: sandbox.Result{Status: sandbox.StatusCancelled}}
	}
	o.cancels[req.ID] = cancel
	o.inflight.Add(1)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.cancels, req.ID)
		o.mu.Unlock()
		o.inflight.Done()
	}()

	return Result{Result: o.runner.Run(runCtx, req)}
}

// Shutdown stops intake, cancels all in-flight sessions, and waits for
// their teardown to finish or ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, cancel := range o.cancels {
		cancels = append(cancels, cancel)
	}
	o.mu.Unlock()

	o.logger.Info("orchestrator draining", zap.Int("in_flight", len(cancels)))
	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("orchestrator drained")
		return nil
	case <-ctx.Done():
		o.logger.Error("shutdown deadline hit before all sessions drained")
		return ctx.Err()
	}
}
