package capacity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
)

// SnapshotCache is a read-through redis cache for capacity snapshots.
// Entries carry a short TTL and are explicitly invalidated whenever a
// booking, schedule, or time-off mutation touches the staff+dates they
// aggregate.
type SnapshotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewSnapshotCache constructs the cache.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *SnapshotCache {
	if client == nil {
		panic("capacity: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.capacity.cache")
	}
	return &SnapshotCache{redis: client, ttl: ttl, tracer: tracer}
}

// Get returns a cached snapshot, or ok=false on miss or any cache error.
// Cache failures degrade to recomputation, never to request failure.
func (c *SnapshotCache) Get(ctx context.Context, staffID string, date time.Time) (*Snapshot, bool) {
	ctx, span := c.tracer.Start(ctx, "capacity.cache_get")
	defer span.End()

	data, err := c.redis.Get(ctx, snapshotKey(staffID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			span.RecordError(err)
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return nil, false
	}
	return &snap, true
}

// Set stores a snapshot under the staff+date key.
func (c *SnapshotCache) Set(ctx context.Context, snap *Snapshot) error {
	ctx, span := c.tracer.Start(ctx, "capacity.cache_set")
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("capacity: marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, snapshotKey(snap.StaffID, snap.Date), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("capacity: cache snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for one staff+date.
func (c *SnapshotCache) Invalidate(ctx context.Context, staffID string, date time.Time) error {
	ctx, span := c.tracer.Start(ctx, "capacity.cache_invalidate")
	defer span.End()

	if err := c.redis.Del(ctx, snapshotKey(staffID, date)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("capacity: invalidate snapshot: %w", err)
	}
	return nil
}

// InvalidateStaff drops every cached snapshot for one staff member. Used
// when a mutation changes an open-ended date range, like superseding a
// recurring schedule, where no bounded set of dates can be enumerated.
func (c *SnapshotCache) InvalidateStaff(ctx context.Context, staffID string) error {
	ctx, span := c.tracer.Start(ctx, "capacity.cache_invalidate_staff")
	defer span.End()

	iter := c.redis.Scan(ctx, 0, fmt.Sprintf("capacity:%s:*", staffID), 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("capacity: scan snapshots: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("capacity: invalidate staff snapshots: %w", err)
	}
	return nil
}

func snapshotKey(staffID string, date time.Time) string {
	return fmt.Sprintf("capacity:%s:%s", staffID, schedule.FormatDate(date))
}
