package cache

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

func testKey(org string, start, end model.Date) Key {
	return Key{
		OrganizerID: org,
		EventTypeID: "et-1",
		StartDate:   start,
		EndDate:     end,
		Timezones:   []string{"America/New_York"},
	}
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)
	key := testKey("org-1", model.Date{Year: 2026, Month: 3, Day: 2}, model.Date{Year: 2026, Month: 3, Day: 8})

	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}
	entry := Entry{Slots: []model.ResolvedSlot{{DurationMinutes: 30}}, StoredAt: time.Now()}
	if err := c.Put(ctx, key, entry, time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok, _ := c.Get(ctx, key)
	if !ok || len(got.Slots) != 1 {
		t.Fatalf("expected hit with 1 slot, got ok=%v slots=%d", ok, len(got.Slots))
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := testKey("org-1", model.Date{Year: 2026, Month: 3, Day: 2}, model.Date{Year: 2026, Month: 3, Day: 2})
	_ = c.Put(ctx, key, Entry{}, time.Minute)

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestMemory_InvalidateRange(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)

	march := testKey("org-1", model.Date{Year: 2026, Month: 3, Day: 2}, model.Date{Year: 2026, Month: 3, Day: 8})
	april := testKey("org-1", model.Date{Year: 2026, Month: 4, Day: 6}, model.Date{Year: 2026, Month: 4, Day: 12})
	other := testKey("org-2", model.Date{Year: 2026, Month: 3, Day: 2}, model.Date{Year: 2026, Month: 3, Day: 8})
	for _, k := range []Key{march, april, other} {
		_ = c.Put(ctx, k, Entry{}, time.Minute)
	}

	// An override edit on March 5 must only drop entries covering that date.
	r := model.DateRange{
		Start: model.Date{Year: 2026, Month: 3, Day: 5},
		End:   model.Date{Year: 2026, Month: 3, Day: 5},
	}
	if err := c.Invalidate(ctx, "org-1", &r); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	if _, ok, _ := c.Get(ctx, march); ok {
		t.Fatal("intersecting entry must be invalidated")
	}
	if _, ok, _ := c.Get(ctx, april); !ok {
		t.Fatal("non-intersecting entry must survive")
	}
	if _, ok, _ := c.Get(ctx, other); !ok {
		t.Fatal("other organizer's entry must survive")
	}
}

func TestMemory_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(16)
	k := testKey("org-1", model.Date{Year: 2026, Month: 3, Day: 2}, model.Date{Year: 2026, Month: 3, Day: 8})
	_ = c.Put(ctx, k, Entry{}, time.Minute)

	// nil range = open-ended rule change; everything for the organizer goes.
	if err := c.Invalidate(ctx, "org-1", nil); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, k); ok {
		t.Fatal("expected full invalidation")
	}
}

func TestKeyRoundTrip(t *testing.T) {
	k := Key{
		OrganizerID:   "org-1",
		EventTypeID:   "et-9",
		StartDate:     model.Date{Year: 2026, Month: 3, Day: 2},
		EndDate:       model.Date{Year: 2026, Month: 3, Day: 8},
		Timezones:     []string{"Europe/Berlin", "Asia/Kolkata"},
		AttendeeCount: 3,
		Intersect:     true,
	}
	parsed, err := ParseKey(k.String())
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if parsed.OrganizerID != k.OrganizerID || parsed.EventTypeID != k.EventTypeID ||
		parsed.StartDate != k.StartDate || parsed.EndDate != k.EndDate ||
		parsed.AttendeeCount != 3 || !parsed.Intersect || len(parsed.Timezones) != 2 {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestStats(t *testing.T) {
	var s Stats
	s.Hit()
	s.Hit()
	s.Miss()
	if got := s.HitRate(); got < 0.66 || got > 0.67 {
		t.Fatalf("expected hit rate ~0.667, got %v", got)
	}
	snap := s.Snapshot()
	if snap.Hits != 2 || snap.Misses != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
