package rollover

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// lockTTL caps how long a crashed calculator can hold a month's lock.
const lockTTL = 30 * time.Second

// Locker is a best-effort single-flight guard around the first calculation
// for a month, backed by Redis SETNX. Concurrent calculators are already
// safe without it (both compute the same deterministic mapping and upserts
// are last-writer-wins); the lock only avoids duplicated work.
type Locker struct {
	client *redis.Client
}

// NewLocker wraps a Redis client as a calculation lock. client may be nil
// (Redis down or not configured), in which case every Acquire succeeds.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire tries to take the calculation lock for a month. It returns a
// release func and whether the lock was obtained. Redis errors count as
// acquired: the guard must never block reconciliation.
func (l *Locker) Acquire(ctx context.Context, month string) (func(), bool) {
	if l == nil || l.client == nil {
		return func() {}, true
	}

	key := "rollover:calc:" + month
	ok, err := l.client.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		log.Printf("Rollover: calc lock unavailable for %s, proceeding without: %v", month, err)
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}
	return func() {
		if err := l.client.Del(context.Background(), key).Err(); err != nil {
			log.Printf("Rollover: failed to release calc lock for %s: %v", month, err)
		}
	}, true
}
