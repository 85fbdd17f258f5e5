package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper answers "has this gateway event id been seen before?"
// using a Redis SET NX with a TTL.  It is a fast-path guard in front
// of the reconciler's state-based idempotency, sparing redeliveries a
// round through the database; losing Redis only loses the fast path,
// never correctness.
type EventDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventDeduper wraps the given client.  A nil client disables
// deduplication (every event reports as a first delivery).
func NewEventDeduper(rdb *redis.Client, ttl time.Duration) *EventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventDeduper{rdb: rdb, ttl: ttl}
}

// FirstDelivery reports whether eventID has not been processed yet,
// atomically recording it.  Redis errors degrade to "first delivery"
// so a broken cache never drops events; the reconciler's own
// idempotency absorbs the occasional duplicate.
func (d *EventDeduper) FirstDelivery(ctx context.Context, eventID string) bool {
	if d.rdb == nil || eventID == "" {
		return true
	}
	ok, err := d.rdb.SetNX(ctx, "webhook:event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Forget releases a claimed event id so a redelivery can be processed
// again.  Called when handling fails after the claim was taken.
func (d *EventDeduper) Forget(ctx context.Context, eventID string) {
	if d.rdb == nil || eventID == "" {
		return
	}
	_ = d.rdb.Del(ctx, "webhook:event:"+eventID).Err()
}
