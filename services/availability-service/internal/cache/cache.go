// Package cache memoizes resolved slot sets keyed by the full query shape,
// with range-aware invalidation driven synchronously by rule mutations.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Key identifies one cached resolution. Timezone order is preserved because
// it determines the order of local projections in the response.
type Key struct {
	OrganizerID   string
	EventTypeID   string
	StartDate     model.Date
	EndDate       model.Date
	Timezones     []string
	AttendeeCount int
	Intersect     bool
}

func (k Key) String() string {
	intersect := "0"
	if k.Intersect {
		intersect = "1"
	}
	return strings.Join([]string{
		k.OrganizerID,
		k.EventTypeID,
		k.StartDate.String(),
		k.EndDate.String(),
		strings.Join(k.Timezones, ","),
		strconv.Itoa(k.AttendeeCount),
		intersect,
	}, "|")
}

// ParseKey inverts Key.String; the Redis backend stores keys as strings in
// its per-organizer index and needs the date range back for invalidation.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 7 {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	start, err := model.ParseDate(parts[2])
	if err != nil {
		return Key{}, err
	}
	end, err := model.ParseDate(parts[3])
	if err != nil {
		return Key{}, err
	}
	count, err := strconv.Atoi(parts[5])
	if err != nil {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	var zones []string
	if parts[4] != "" {
		zones = strings.Split(parts[4], ",")
	}
	return Key{
		OrganizerID:   parts[0],
		EventTypeID:   parts[1],
		StartDate:     start,
		EndDate:       end,
		Timezones:     zones,
		AttendeeCount: count,
		Intersect:     parts[6] == "1",
	}, nil
}

func (k Key) Range() model.DateRange {
	return model.DateRange{Start: k.StartDate, End: k.EndDate}
}

// Entry is a cached slot set.
type Entry struct {
	Slots    []model.ResolvedSlot `json:"slots"`
	StoredAt time.Time            `json:"stored_at"`
}

// Cache is the availability memoization contract. Implementations must make
// Invalidate synchronous: once it returns, no intersecting entry is served.
// A nil dateRange invalidates everything for the organizer (open-ended
// rules invalidate unboundedly forward).
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Put(ctx context.Context, key Key, entry Entry, ttl time.Duration) error
	Invalidate(ctx context.Context, organizerID string, dateRange *model.DateRange) error
}

// Stats tracks process-wide hit/miss counters.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (s *Stats) Hit()  { s.hits.Add(1) }
func (s *Stats) Miss() { s.misses.Add(1) }

func (s *Stats) HitRate() float64 {
	h := s.hits.Load()
	m := s.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// Snapshot is the diagnostics view of the counters.
type Snapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{Hits: s.hits.Load(), Misses: s.misses.Load(), HitRate: s.HitRate()}
}
