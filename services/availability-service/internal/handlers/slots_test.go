package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/resolver"
)

type fakeResolver struct {
	lastReq resolver.Request
	resp    resolver.Response
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, req resolver.Request) (resolver.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return resolver.Response{}, f.err
	}
	return f.resp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlotsHappyPath(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	fake := &fakeResolver{resp: resolver.Response{
		Slots: []model.ResolvedSlot{{Start: start, End: start.Add(30 * time.Minute), DurationMinutes: 30}},
	}}
	h := NewSlotsHandler(fake, testLogger(), 31)

	req := httptest.NewRequest("GET",
		"/api/v1/public/slots?organizer_id=org-1&event_type_id=et-1&start_date=2026-03-02&end_date=2026-03-02&timezones=America/New_York,Europe/Berlin&attendee_count=2&intersect=1", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp resolver.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(resp.Slots))
	}

	if fake.lastReq.OrganizerID != "org-1" || fake.lastReq.EventTypeID != "et-1" {
		t.Fatalf("request not forwarded: %+v", fake.lastReq)
	}
	if len(fake.lastReq.Timezones) != 2 || fake.lastReq.Timezones[0] != "America/New_York" {
		t.Fatalf("timezones not parsed in order: %v", fake.lastReq.Timezones)
	}
	if fake.lastReq.AttendeeCount != 2 || !fake.lastReq.Intersect {
		t.Fatalf("attendee/intersect not forwarded: %+v", fake.lastReq)
	}
}

func TestSlotsMissingParams(t *testing.T) {
	h := NewSlotsHandler(&fakeResolver{}, testLogger(), 31)

	req := httptest.NewRequest("GET", "/api/v1/public/slots?organizer_id=org-1", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for missing event_type_id, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET",
		"/api/v1/public/slots?organizer_id=org-1&event_type_id=et-1&start_date=03/02/2026&end_date=2026-03-02", nil)
	rec = httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestSlotsRangeCap(t *testing.T) {
	h := NewSlotsHandler(&fakeResolver{}, testLogger(), 7)

	req := httptest.NewRequest("GET",
		"/api/v1/public/slots?organizer_id=org-1&event_type_id=et-1&start_date=2026-03-01&end_date=2026-03-31", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for oversized range, got %d", rec.Code)
	}
}

func TestSlotsErrorMapping(t *testing.T) {
	url := "/api/v1/public/slots?organizer_id=org-1&event_type_id=et-1&start_date=2026-03-02&end_date=2026-03-02"

	h := NewSlotsHandler(&fakeResolver{err: model.ErrNotFound}, testLogger(), 31)
	rec := httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 for unknown event type, got %d", rec.Code)
	}

	h = NewSlotsHandler(&fakeResolver{err: model.Invalid("timezone", "unknown timezone")}, testLogger(), 31)
	rec = httptest.NewRecorder()
	h.Slots(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != 400 {
		t.Fatalf("expected 400 for validation error, got %d", rec.Code)
	}
}

type fakeStats struct{ snap cache.Snapshot }

func (f fakeStats) Stats() cache.Snapshot { return f.snap }

func TestDiagnosticsTimezone(t *testing.T) {
	h := NewDiagnosticsHandler(fakeStats{})

	req := httptest.NewRequest("GET", "/api/v1/diagnostics/timezone?tz=America/New_York&date=2026-03-08", nil)
	rec := httptest.NewRecorder()
	h.Timezone(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp timezoneDiagnostics
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if !resp.Valid {
		t.Fatal("expected valid timezone")
	}
	if !resp.DSTTransitionDate {
		t.Fatal("expected 2026-03-08 to be flagged as a DST transition date in New York")
	}

	req = httptest.NewRequest("GET", "/api/v1/diagnostics/timezone?tz=Mars/Olympus_Mons", nil)
	rec = httptest.NewRecorder()
	h.Timezone(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 for unknown zone, got %d", rec.Code)
	}
	resp = timezoneDiagnostics{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if resp.Valid {
		t.Fatal("expected unknown timezone to be reported invalid")
	}
}

func TestDiagnosticsCacheStats(t *testing.T) {
	h := NewDiagnosticsHandler(fakeStats{snap: cache.Snapshot{Hits: 3, Misses: 1, HitRate: 0.75}})

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest("GET", "/api/v1/diagnostics/cache", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap cache.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if snap.Hits != 3 || snap.Misses != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
