package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "ratelimit:"

	// How many times a contended compare-and-swap is retried before the
	// limiter gives up and fails closed.
	maxCASRetries = 5
)

// RedisLimiter implements Limiter against a redis-compatible store using
// an optimistic WATCH/MULTI compare-and-swap, so two submissions racing on
// the same key cannot both pass when only one slot remains. When the store
// is unreachable the limiter fails closed.
type RedisLimiter struct {
	client *redis.Client
	logger *zap.Logger
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewRedisLimiter creates a limiter over the given client.
func NewRedisLimiter(client *redis.Client, logger *zap.Logger, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		logger: logger,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// record is the persisted per-requestor window state.
type record struct {
	windowStart time.Time
	count       int
}

func encodeRecord(r record) string {
	return fmt.Sprintf("%d:%d", r.windowStart.UnixMilli(), r.count)
}

func decodeRecord(s string) (record, error) {
	start, countStr, ok := strings.Cut(s, ":")
	if !ok {
		return record{}, fmt.Errorf("malformed rate-limit record: %q", s)
	}
	startMilli, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return record{}, fmt.Errorf("malformed window start in %q: %w", s, err)
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return record{}, fmt.Errorf("malformed count in %q: %w", s, err)
	}
	return record{windowStart: time.UnixMilli(startMilli), count: count}, nil
}

// Check reads the requestor's window record, resets it if the window has
// elapsed, and increments the count if a slot remains. The read-modify-write
// runs as a single compare-and-swap; a concurrent writer invalidates the
// attempt and the whole decision is retried on fresh state.
func (l *RedisLimiter) Check(ctx context.Context, requestorID string) Decision {
	key := keyPrefix + requestorID

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		var decision Decision

		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			now := l.now()

			rec := record{windowStart: now}
			raw, err := tx.Get(ctx, key).Result()
			switch {
			case err == redis.Nil:
				// No record yet: fresh window.
			case err != nil:
				return err
			default:
				rec, err = decodeRecord(raw)
				if err != nil {
					// A corrupt record is unreadable by every future call
					// too; treat it as a fresh window rather than locking
					// the requestor out forever.
					l.logger.Warn("resetting corrupt rate-limit record",
						zap.String("requestor", requestorID), zap.Error(err))
					rec = record{windowStart: now}
				}
				if now.Sub(rec.windowStart) >= l.window {
					rec = record{windowStart: now}
				}
			}

			if rec.count >= l.limit {
				decision = Reject(rec.windowStart.Add(l.window).Sub(now))
				return nil
			}

			rec.count++
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				// Expire well after the window so a stale record cannot
				// outlive its usefulness, while still surviving clock skew.
				pipe.Set(ctx, key, encodeRecord(rec), 2*l.window)
				return nil
			})
			if err != nil {
				return err
			}
			decision = Allow
			return nil
		}, key)

		if err == redis.TxFailedErr {
			// Lost the race to a concurrent check on the same key.
			continue
		}
		if err != nil {
			l.logger.Error("rate-limit store unreachable, failing closed",
				zap.String("requestor", requestorID), zap.Error(err))
			return Reject(l.window)
		}
		return decision
	}

	l.logger.Warn("rate-limit compare-and-swap exhausted retries, failing closed",
		zap.String("requestor", requestorID))
	return Reject(l.window)
}
