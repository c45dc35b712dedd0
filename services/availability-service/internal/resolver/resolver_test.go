package resolver

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// 2026-03-02 is a Monday; New York is on EST (-5) until March 8.
var monday = model.Date{Year: 2026, Month: time.March, Day: 2}

type fakeRules struct {
	rs model.RuleSet
}

func (f *fakeRules) RuleSet(_ context.Context, _ string, _, _ model.Date) (model.RuleSet, error) {
	return f.rs, nil
}

type fakeCatalog struct {
	types map[string]model.EventType
}

func (f *fakeCatalog) EventType(_ context.Context, _, id string) (model.EventType, error) {
	et, ok := f.types[id]
	if !ok {
		return model.EventType{}, model.ErrNotFound
	}
	return et, nil
}

func newTestResolver(rs model.RuleSet) *Resolver {
	r := NewResolver(
		&fakeRules{rs: rs},
		&fakeCatalog{types: map[string]model.EventType{
			"et-30": {ID: "et-30", OrganizerID: "org-1", Name: "Intro call", DurationMinutes: 30, Timezone: "America/New_York"},
		}},
	)
	// Fixed clock well before the test dates so no slot is "in the past".
	r.Clock = func() time.Time { return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func mondayWeekly() model.WeeklyRule {
	return model.WeeklyRule{ID: "w1", OrganizerID: "org-1", DayOfWeek: 0, StartMinute: 540, EndMinute: 1020, IsActive: true}
}

func request(start, end model.Date) Request {
	return Request{OrganizerID: "org-1", EventTypeID: "et-30", StartDate: start, EndDate: end}
}

func TestResolve_PlainMonday(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{OrganizerID: "org-1", SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 16 {
		t.Fatalf("expected 16 slots for 09:00-17:00 at 30min, got %d", len(resp.Slots))
	}
	// 09:00 EST == 14:00 UTC.
	first := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)
	if !resp.Slots[0].Start.Equal(first) {
		t.Fatalf("expected first slot %s, got %s", first, resp.Slots[0].Start)
	}
	last := time.Date(2026, time.March, 2, 21, 30, 0, 0, time.UTC) // 16:30 EST
	if !resp.Slots[15].Start.Equal(last) {
		t.Fatalf("expected last slot %s, got %s", last, resp.Slots[15].Start)
	}
}

func TestResolve_UnavailableOverrideWins(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{mondayWeekly()},
		Overrides: []model.DateOverride{
			{ID: "o1", OrganizerID: "org-1", Date: monday, IsAvailable: false, Reason: "conference", IsActive: true},
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("expected 0 slots under an unavailable override, got %d", len(resp.Slots))
	}
}

func TestResolve_AvailableOverrideReplacesWeekly(t *testing.T) {
	start, end := 600, 720 // 10:00-12:00 instead of 09:00-17:00
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{mondayWeekly()},
		Overrides: []model.DateOverride{
			{ID: "o1", OrganizerID: "org-1", Date: monday, IsAvailable: true, StartMinute: &start, EndMinute: &end, IsActive: true},
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 4 {
		t.Fatalf("expected 4 slots in the override window, got %d", len(resp.Slots))
	}
	want := time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC) // 10:00 EST
	if !resp.Slots[0].Start.Equal(want) {
		t.Fatalf("expected first slot %s, got %s", want, resp.Slots[0].Start)
	}
}

func TestResolve_RecurringBlockSplitsWindow(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{mondayWeekly()},
		RecurringBlocks: []model.RecurringBlock{
			{ID: "b1", OrganizerID: "org-1", Name: "Lunch", DayOfWeek: 0, StartMinute: 720, EndMinute: 780, IsActive: true},
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// 09:00-12:00 yields 6 slots, 13:00-17:00 yields 8; nothing during lunch.
	if len(resp.Slots) != 14 {
		t.Fatalf("expected 14 slots around the lunch block, got %d", len(resp.Slots))
	}
	noon := time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC) // 12:00 EST
	for _, s := range resp.Slots {
		if !s.Start.Before(noon) && s.Start.Before(noon.Add(time.Hour)) {
			t.Fatalf("slot %s falls inside the lunch block", s.Start)
		}
	}
}

func TestResolve_BuffersShrinkWindows(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{
			{ID: "w1", OrganizerID: "org-1", DayOfWeek: 0, StartMinute: 540, EndMinute: 600, IsActive: true}, // 09:00-10:00
		},
		Buffers: model.BufferPolicy{BufferBeforeMin: 15, BufferAfterMin: 15, SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("expected exactly one buffered slot, got %d", len(resp.Slots))
	}
	want := time.Date(2026, time.March, 2, 14, 15, 0, 0, time.UTC) // 09:15 EST
	if !resp.Slots[0].Start.Equal(want) {
		t.Fatalf("expected 09:15 slot, got %s", resp.Slots[0].Start)
	}
}

func TestResolve_MinimumGapLimitsLastSlot(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{
			{ID: "w1", OrganizerID: "org-1", DayOfWeek: 0, StartMinute: 540, EndMinute: 600, IsActive: true},
		},
		Buffers: model.BufferPolicy{MinimumGapMin: 15, SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// 09:30 + 30 + 15 > 10:00, so only 09:00 fits.
	if len(resp.Slots) != 1 {
		t.Fatalf("expected 1 slot with minimum gap, got %d", len(resp.Slots))
	}
}

func TestResolve_BlockedTimeClipsOverrideWindow(t *testing.T) {
	// Manual blocks subtract even from override-granted availability.
	start, end := 540, 720
	r := newTestResolver(model.RuleSet{
		Overrides: []model.DateOverride{
			{ID: "o1", OrganizerID: "org-1", Date: monday, IsAvailable: true, StartMinute: &start, EndMinute: &end, IsActive: true},
		},
		BlockedTimes: []model.BlockedTime{
			{
				ID: "bt1", OrganizerID: "org-1",
				Start:    time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC), // 09:00 EST
				End:      time.Date(2026, time.March, 2, 16, 0, 0, 0, time.UTC), // 11:00 EST
				Source:   model.SourceGoogle,
				IsActive: true,
			},
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// Only 11:00-12:00 survives: 11:00 and 11:30.
	if len(resp.Slots) != 2 {
		t.Fatalf("expected 2 slots after block subtraction, got %d", len(resp.Slots))
	}
	want := time.Date(2026, time.March, 2, 16, 0, 0, 0, time.UTC)
	if !resp.Slots[0].Start.Equal(want) {
		t.Fatalf("expected first slot at 11:00 EST, got %s", resp.Slots[0].Start)
	}
}

func TestResolve_MidnightSpanningWeeklyRule(t *testing.T) {
	// Mon 22:00-02:00 belongs to Monday's resolution and spills into Tuesday.
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{
			{ID: "w1", OrganizerID: "org-1", DayOfWeek: 0, StartMinute: 1320, EndMinute: 120, IsActive: true},
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 60},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 4 {
		t.Fatalf("expected 4 hourly slots from 22:00 to 01:00, got %d", len(resp.Slots))
	}
	// Last slot starts 01:00 EST Tuesday == 06:00 UTC March 3.
	last := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)
	if !resp.Slots[3].Start.Equal(last) {
		t.Fatalf("expected last slot %s, got %s", last, resp.Slots[3].Start)
	}
}

func TestResolve_BoundaryTouchingBlockKeepsWindow(t *testing.T) {
	// Block ending exactly at window start subtracts nothing.
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{mondayWeekly()},
		RecurringBlocks: []model.RecurringBlock{
			{ID: "b1", OrganizerID: "org-1", DayOfWeek: 0, StartMinute: 480, EndMinute: 540, IsActive: true}, // 08:00-09:00
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 16 {
		t.Fatalf("expected untouched 16 slots, got %d", len(resp.Slots))
	}
}

func TestResolve_EventTypeScope(t *testing.T) {
	scoped := mondayWeekly()
	scoped.EventTypeIDs = []string{"et-other"}
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{scoped},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("expected 0 slots for out-of-scope rule, got %d", len(resp.Slots))
	}
}

func TestResolve_LocalProjections(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})
	req := request(monday, monday)
	req.Timezones = []string{"America/New_York", "Europe/Berlin"}

	resp, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	first := resp.Slots[0]
	if len(first.Local) != 2 {
		t.Fatalf("expected 2 local views, got %d", len(first.Local))
	}
	if first.Local[0].StartTime != "09:00" {
		t.Fatalf("expected 09:00 New York view, got %s", first.Local[0].StartTime)
	}
	// EST -5 vs CET +1: 09:00 in New York is 15:00 in Berlin.
	if first.Local[1].StartTime != "15:00" {
		t.Fatalf("expected 15:00 Berlin view, got %s", first.Local[1].StartTime)
	}
}

func TestResolve_IntersectDropsLateSlots(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})
	req := request(monday, monday)
	req.Timezones = []string{"America/New_York", "Europe/Berlin"}
	req.Intersect = true

	resp, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// 16:00 and 16:30 New York land at/after 22:00 in Berlin and drop out.
	if len(resp.Slots) != 14 {
		t.Fatalf("expected 14 intersected slots, got %d", len(resp.Slots))
	}
}

func TestResolve_FairnessScores(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})
	req := request(monday, monday)
	req.Timezones = []string{"America/New_York", "Europe/Berlin"}
	req.AttendeeCount = 2

	resp, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	// 09:00/15:00 local pair should outscore 16:30/22:30.
	var nineAM, lateAfternoon float64
	for _, s := range resp.Slots {
		switch s.Local[0].StartTime {
		case "09:00":
			nineAM = s.FairnessScore
		case "16:30":
			lateAfternoon = s.FairnessScore
		}
	}
	if nineAM <= lateAfternoon {
		t.Fatalf("expected morning slot to score higher: nine=%v late=%v", nineAM, lateAfternoon)
	}
}

func TestResolve_PastSlotsSuppressed(t *testing.T) {
	r := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})
	// Clock at 12:31 EST on the query day: 09:00-12:30 starts are gone.
	r.Clock = func() time.Time { return time.Date(2026, time.March, 2, 17, 31, 0, 0, time.UTC) }

	resp, err := r.Resolve(context.Background(), request(monday, monday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resp.Slots) != 8 {
		t.Fatalf("expected 8 remaining future slots, got %d", len(resp.Slots))
	}
}

func TestResolve_BadRange(t *testing.T) {
	r := newTestResolver(model.RuleSet{})
	_, err := r.Resolve(context.Background(), request(monday, monday.AddDays(-1)))
	if err == nil || !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolve_UnknownEventType(t *testing.T) {
	r := newTestResolver(model.RuleSet{})
	req := request(monday, monday)
	req.EventTypeID = "et-missing"
	_, err := r.Resolve(context.Background(), req)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResolve_NoRulesIsEmptyNotError(t *testing.T) {
	r := newTestResolver(model.RuleSet{Buffers: model.BufferPolicy{SlotIntervalMin: 30}})
	resp, err := r.Resolve(context.Background(), request(monday, monday.AddDays(6)))
	if err != nil {
		t.Fatalf("expected graceful empty result, got %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(resp.Slots))
	}
}

func TestResolve_DSTSpringForwardFlagsSlot(t *testing.T) {
	// 2026-03-08 is the spring-forward Sunday in New York; a window over the
	// 02:00-03:00 gap produces shifted, flagged starts instead of bad ones.
	sunday := model.Date{Year: 2026, Month: time.March, Day: 8}
	r := newTestResolver(model.RuleSet{
		Weekly: []model.WeeklyRule{
			{ID: "w1", OrganizerID: "org-1", DayOfWeek: 6, StartMinute: 90, EndMinute: 300, IsActive: true}, // 01:30-05:00
		},
		Buffers: model.BufferPolicy{SlotIntervalMin: 60},
	})

	resp, err := r.Resolve(context.Background(), request(sunday, sunday))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	var adjusted int
	for _, s := range resp.Slots {
		if s.DSTAdjusted {
			adjusted++
		}
	}
	if adjusted == 0 {
		t.Fatal("expected at least one DST-adjusted slot over the gap")
	}
}

func TestCached_IdempotentHitAndInvalidation(t *testing.T) {
	mem := cache.NewMemory(16)
	var stats cache.Stats
	inner := newTestResolver(model.RuleSet{
		Weekly:  []model.WeeklyRule{mondayWeekly()},
		Buffers: model.BufferPolicy{SlotIntervalMin: 30},
	})
	c := NewCached(inner, mem, &stats, time.Minute, slog.Default())
	ctx := context.Background()

	first, err := c.Resolve(ctx, request(monday, monday))
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first resolution must be a miss")
	}

	second, err := c.Resolve(ctx, request(monday, monday))
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second resolution must hit the cache")
	}
	if len(second.Slots) != len(first.Slots) {
		t.Fatalf("cached slots differ: %d vs %d", len(second.Slots), len(first.Slots))
	}

	// A rule edit touching the cached range flips the next query to a miss.
	r := model.DateRange{Start: monday, End: monday}
	if err := mem.Invalidate(ctx, "org-1", &r); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	third, err := c.Resolve(ctx, request(monday, monday))
	if err != nil {
		t.Fatalf("third resolve failed: %v", err)
	}
	if third.CacheHit {
		t.Fatal("post-invalidation resolution must miss")
	}
	if stats.Snapshot().Hits != 1 || stats.Snapshot().Misses != 2 {
		t.Fatalf("unexpected stats: %+v", stats.Snapshot())
	}
}
