package precompute

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/resolver"
)

type fakeOrganizers struct {
	ids []string
	err error
}

func (f fakeOrganizers) ActiveOrganizerIDs(context.Context) ([]string, error) {
	return f.ids, f.err
}

type fakeCatalog struct {
	types map[string][]model.EventType
}

func (f fakeCatalog) EventType(_ context.Context, organizerID, eventTypeID string) (model.EventType, error) {
	for _, et := range f.types[organizerID] {
		if et.ID == eventTypeID {
			return et, nil
		}
	}
	return model.EventType{}, model.ErrNotFound
}

func (f fakeCatalog) ListEventTypes(_ context.Context, organizerID string) ([]model.EventType, error) {
	return f.types[organizerID], nil
}

type recordingResolver struct {
	mu       sync.Mutex
	requests []resolver.Request
	fail     map[string]bool
}

func (r *recordingResolver) Resolve(_ context.Context, req resolver.Request) (resolver.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.fail[req.OrganizerID] {
		return resolver.Response{}, errors.New("boom")
	}
	return resolver.Response{}, nil
}

func newTestWarmer(orgs OrganizerSource, cat fakeCatalog, res SlotResolver, horizon int) *Warmer {
	w := NewWarmer(orgs, cat, res, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{HorizonDays: horizon})
	w.clock = func() time.Time { return time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC) }
	return w
}

func TestWarmAllCoversHorizonPerEventType(t *testing.T) {
	cat := fakeCatalog{types: map[string][]model.EventType{
		"org-1": {
			{ID: "et-1", OrganizerID: "org-1", DurationMinutes: 30, Timezone: "UTC"},
			{ID: "et-2", OrganizerID: "org-1", DurationMinutes: 60, Timezone: "UTC"},
		},
	}}
	res := &recordingResolver{}
	w := newTestWarmer(fakeOrganizers{ids: []string{"org-1"}}, cat, res, 3)

	w.warmAll(context.Background())

	if len(res.requests) != 6 {
		t.Fatalf("expected 6 warm requests (2 event types x 3 days), got %d", len(res.requests))
	}
	first := res.requests[0]
	if first.StartDate != first.EndDate {
		t.Fatalf("warm requests must be single-day, got %s..%s", first.StartDate, first.EndDate)
	}
	want := model.Date{Year: 2026, Month: time.June, Day: 15}
	if first.StartDate != want {
		t.Fatalf("expected first warm day %s, got %s", want, first.StartDate)
	}
	last := res.requests[len(res.requests)-1]
	if got, wantLast := last.StartDate, want.AddDays(2); got != wantLast {
		t.Fatalf("expected last warm day %s, got %s", wantLast, got)
	}
}

func TestWarmAllContinuesPastFailures(t *testing.T) {
	cat := fakeCatalog{types: map[string][]model.EventType{
		"org-bad":  {{ID: "et-1", OrganizerID: "org-bad", DurationMinutes: 30, Timezone: "UTC"}},
		"org-good": {{ID: "et-1", OrganizerID: "org-good", DurationMinutes: 30, Timezone: "UTC"}},
	}}
	res := &recordingResolver{fail: map[string]bool{"org-bad": true}}
	w := newTestWarmer(fakeOrganizers{ids: []string{"org-bad", "org-good"}}, cat, res, 2)

	w.warmAll(context.Background())

	good := 0
	for _, req := range res.requests {
		if req.OrganizerID == "org-good" {
			good++
		}
	}
	if good != 2 {
		t.Fatalf("expected 2 warm requests for the healthy organizer, got %d", good)
	}
}

func TestWarmAllStopsOnCancelledContext(t *testing.T) {
	cat := fakeCatalog{types: map[string][]model.EventType{
		"org-1": {{ID: "et-1", OrganizerID: "org-1", DurationMinutes: 30, Timezone: "UTC"}},
	}}
	res := &recordingResolver{}
	w := newTestWarmer(fakeOrganizers{ids: []string{"org-1"}}, cat, res, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.warmAll(ctx)

	if len(res.requests) != 0 {
		t.Fatalf("expected no warm requests after cancellation, got %d", len(res.requests))
	}
}
