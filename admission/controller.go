package admission

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snipbox/snipbox/config"
	"github.com/snipbox/snipbox/ratelimit"
)

// RejectReason classifies why a request was refused before any sandbox
// resources were touched.
type RejectReason string

const (
	ReasonTooLarge    RejectReason = "too_large"
	ReasonRateLimited RejectReason = "rate_limited"
	ReasonOverloaded  RejectReason = "overloaded"
)

// Rejection is an admission refusal. RetryAfter is set for rate-limited
// requests only.
type Rejection struct {
	Reason     RejectReason
	RetryAfter time.Duration
}

// Ticket is one unit of the global execution capacity. Release returns the
// slot to the pool; calling it more than once has no further effect.
type Ticket struct {
	once sync.Once
	c    *Controller
}

// Release gives the slot back, waking the head of the wait queue if any.
func (t *Ticket) Release() {
	t.once.Do(t.c.releaseSlot)
}

// Controller gates every execution request: source-size policy, the
// per-requestor rate limiter, and the global concurrency budget with a
// bounded FIFO wait queue behind it.
type Controller struct {
	logger    *zap.Logger
	limiter   ratelimit.Limiter
	maxSource int
	queueCap  int

	mu      sync.Mutex
	free    int
	waiters []chan *Ticket
}

// New creates a controller with capacity for maxConcurrent simultaneous
// executions and queueCapacity queued requests beyond that.
func New(logger *zap.Logger, limiter ratelimit.Limiter, maxConcurrent, queueCapacity, maxSourceBytes int) *Controller {
	return &Controller{
		logger:    logger,
		limiter:   limiter,
		maxSource: maxSourceBytes,
		queueCap:  queueCapacity,
		free:      maxConcurrent,
	}
}

// NewFromConfig creates a controller from the process configuration.
func NewFromConfig(logger *zap.Logger, limiter ratelimit.Limiter, cfg *config.Config) *Controller {
	return New(logger, limiter, cfg.Admission.MaxConcurrent, cfg.Admission.QueueCapacity, cfg.Admission.MaxSourceBytes)
}

// Admit decides whether a request may proceed. Checks run cheapest first
// and none of them ever touches the container runtime. A nil Rejection and
// nil error means the caller holds a ticket and must release it when the
// session reaches a terminal state. The returned error is non-nil only
// when ctx ended while the request was queued.
func (c *Controller) Admit(ctx context.Context, requestorID string, sourceLen int) (*Ticket, *Rejection, error) {
	if sourceLen > c.maxSource {
		return nil, &Rejection{Reason: ReasonTooLarge}, nil
	}

	if d := c.limiter.Check(ctx, requestorID); !d.Allowed {
		return nil, &Rejection{Reason: ReasonRateLimited, RetryAfter: d.RetryAfter}, nil
	}

	c.mu.Lock()
	if c.free > 0 {
		c.free--
		c.mu.Unlock()
		return &Ticket{c: c}, nil, nil
	}

	if len(c.waiters) >= c.queueCap {
		c.mu.Unlock()
		c.logger.Warn("admission queue full, rejecting",
			zap.String("requestor", requestorID), zap.Int("queue_capacity", c.queueCap))
		return nil, &Rejection{Reason: ReasonOverloaded}, nil
	}

	grant := make(chan *Ticket, 1)
	c.waiters = append(c.waiters, grant)
	c.mu.Unlock()

	select {
	case ticket := <-grant:
		return ticket, nil, nil
	case <-ctx.Done():
		c.abandon(grant)
		return nil, nil, ctx.Err()
	}
}

// releaseSlot hands the freed slot to the head waiter, preserving FIFO
// admission order, or returns it to the pool when nobody is queued.
func (c *Controller) releaseSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.waiters) > 0 {
		grant := c.waiters[0]
		c.waiters = c.waiters[1:]
		grant <- &Ticket{c: c}
		return
	}
	c.free++
}

// abandon removes a cancelled waiter from the queue. If the grant already
// raced in, the slot it carries is put back.
func (c *Controller) abandon(grant chan *Ticket) {
	c.mu.Lock()
	for i, w := range c.waiters {
		if w == grant {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	select {
	case ticket := <-grant:
		ticket.Release()
	default:
	}
}

// queued reports the current wait-queue depth.
func (c *Controller) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
