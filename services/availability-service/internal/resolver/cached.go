package resolver

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
)

// Cached wraps the resolver with the availability cache. Cache failures
// degrade to direct resolution and are never surfaced to the caller;
// concurrent misses for one key recompute independently and the last
// completed Put stands.
type Cached struct {
	inner  *Resolver
	cache  cache.Cache
	stats  *cache.Stats
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(inner *Resolver, c cache.Cache, stats *cache.Stats, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{inner: inner, cache: c, stats: stats, ttl: ttl, logger: logger}
}

func (c *Cached) Stats() cache.Snapshot {
	return c.stats.Snapshot()
}

func (c *Cached) Resolve(ctx context.Context, req Request) (Response, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.resolve")
	span.SetAttributes(
		attribute.String("organizer_id", req.OrganizerID),
		attribute.String("event_type_id", req.EventTypeID),
		attribute.String("range", req.StartDate.String()+".."+req.EndDate.String()),
	)
	defer span.End()

	key := cache.Key{
		OrganizerID:   req.OrganizerID,
		EventTypeID:   req.EventTypeID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Timezones:     req.Timezones,
		AttendeeCount: req.AttendeeCount,
		Intersect:     req.Intersect,
	}

	start := time.Now()
	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed; resolving directly", "err", err)
	} else if ok {
		c.stats.Hit()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return Response{
			Slots:             entry.Slots,
			CacheHit:          true,
			ComputationTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}
	c.stats.Miss()
	span.SetAttributes(attribute.Bool("cache_hit", false))

	resp, err := c.inner.Resolve(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if putErr := c.cache.Put(ctx, key, cache.Entry{Slots: resp.Slots, StoredAt: time.Now().UTC()}, c.ttl); putErr != nil {
		c.logger.Warn("cache put failed", "err", putErr)
	}
	resp.ComputationTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}
