package tz

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadZone(name)
	if err != nil {
		t.Fatalf("LoadZone(%s) failed: %v", name, err)
	}
	return loc
}

func TestLoadZone_Invalid(t *testing.T) {
	if _, err := LoadZone("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if _, err := LoadZone(""); err == nil {
		t.Fatal("expected error for empty zone")
	}
}

func TestToUTC_RoundTrip(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	d := model.Date{Year: 2026, Month: time.June, Day: 15}

	res := ToUTC(d, 14*60+30, ny)
	if res.Nonexistent || res.Ambiguous {
		t.Fatalf("unexpected DST flags on a plain summer day: %+v", res)
	}
	gotDate, gotMin := ToLocal(res.Instant, ny)
	if gotDate != d || gotMin != 14*60+30 {
		t.Fatalf("round trip mismatch: got %s %d", gotDate, gotMin)
	}
}

func TestToUTC_SpringForwardGap(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	// 2026-03-08 02:30 does not exist in New York; clocks jump 02:00 -> 03:00.
	d := model.Date{Year: 2026, Month: time.March, Day: 8}

	res := ToUTC(d, 2*60+30, ny)
	if !res.Nonexistent {
		t.Fatal("expected nonexistent flag for 02:30 on spring-forward day")
	}
	// First valid instant is 03:00 EDT == 07:00 UTC.
	want := time.Date(2026, time.March, 8, 7, 0, 0, 0, time.UTC)
	if !res.Instant.Equal(want) {
		t.Fatalf("expected shift to %s, got %s", want, res.Instant)
	}
}

func TestToUTC_FallBackAmbiguity(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	// 2026-11-01 01:30 occurs twice in New York; the earlier instant wins.
	d := model.Date{Year: 2026, Month: time.November, Day: 1}

	res := ToUTC(d, 1*60+30, ny)
	if !res.Ambiguous {
		t.Fatal("expected ambiguous flag for 01:30 on fall-back day")
	}
	// 01:30 EDT == 05:30 UTC (the later reading, 01:30 EST, would be 06:30).
	want := time.Date(2026, time.November, 1, 5, 30, 0, 0, time.UTC)
	if !res.Instant.Equal(want) {
		t.Fatalf("expected earlier instant %s, got %s", want, res.Instant)
	}
}

func TestToUTC_RollsPastMidnight(t *testing.T) {
	utc := time.UTC
	d := model.Date{Year: 2026, Month: time.January, Day: 5}

	// Minute 1500 addresses 01:00 on the following day.
	res := ToUTC(d, 1500, utc)
	want := time.Date(2026, time.January, 6, 1, 0, 0, 0, time.UTC)
	if !res.Instant.Equal(want) {
		t.Fatalf("expected %s, got %s", want, res.Instant)
	}
}

func TestIsDSTTransitionDate(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	cases := []struct {
		date model.Date
		want bool
	}{
		{model.Date{Year: 2026, Month: time.March, Day: 8}, true},
		{model.Date{Year: 2026, Month: time.November, Day: 1}, true},
		{model.Date{Year: 2026, Month: time.March, Day: 9}, false},
		{model.Date{Year: 2026, Month: time.June, Day: 20}, false},
	}
	for _, c := range cases {
		if got := IsDSTTransitionDate(c.date, ny); got != c.want {
			t.Fatalf("IsDSTTransitionDate(%s) = %v, want %v", c.date, got, c.want)
		}
	}
	if IsDSTTransitionDate(model.Date{Year: 2026, Month: time.March, Day: 8}, time.UTC) {
		t.Fatal("UTC never has DST transitions")
	}
}

func TestOffsetHours(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	kolkata := mustZone(t, "Asia/Kolkata")

	if got := OffsetHours(model.Date{Year: 2026, Month: time.January, Day: 15}, ny); got != -5 {
		t.Fatalf("expected -5 for winter New York, got %v", got)
	}
	if got := OffsetHours(model.Date{Year: 2026, Month: time.July, Day: 1}, ny); got != -4 {
		t.Fatalf("expected -4 for summer New York, got %v", got)
	}
	if got := OffsetHours(model.Date{Year: 2026, Month: time.July, Day: 1}, kolkata); got != 5.5 {
		t.Fatalf("expected 5.5 for Kolkata, got %v", got)
	}
}
