package rules

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

func TestValidateWeekly(t *testing.T) {
	base := model.WeeklyRule{OrganizerID: "org-1", DayOfWeek: 2, StartMinute: 540, EndMinute: 1020}

	if err := validateWeekly(base); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	spanning := base
	spanning.StartMinute, spanning.EndMinute = 1320, 360
	if err := validateWeekly(spanning); err != nil {
		t.Fatalf("midnight-spanning rule rejected: %v", err)
	}

	cases := map[string]func(*model.WeeklyRule){
		"missing organizer": func(r *model.WeeklyRule) { r.OrganizerID = "" },
		"day too large":     func(r *model.WeeklyRule) { r.DayOfWeek = 7 },
		"negative start":    func(r *model.WeeklyRule) { r.StartMinute = -1 },
		"start at 1440":     func(r *model.WeeklyRule) { r.StartMinute = 1440 },
		"end past 1440":     func(r *model.WeeklyRule) { r.EndMinute = 1441 },
		"empty window":      func(r *model.WeeklyRule) { r.EndMinute = r.StartMinute },
	}
	for name, mutate := range cases {
		r := base
		mutate(&r)
		if err := validateWeekly(r); !model.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidateOverride(t *testing.T) {
	date := model.Date{Year: 2026, Month: time.June, Day: 15}
	start, end := 600, 720

	full := model.DateOverride{OrganizerID: "org-1", Date: date, IsAvailable: true}
	if err := validateOverride(full); err != nil {
		t.Fatalf("windowless available override rejected: %v", err)
	}

	windowed := full
	windowed.StartMinute, windowed.EndMinute = &start, &end
	if err := validateOverride(windowed); err != nil {
		t.Fatalf("windowed override rejected: %v", err)
	}

	halfWindow := full
	halfWindow.StartMinute = &start
	if err := validateOverride(halfWindow); !model.IsValidation(err) {
		t.Fatalf("expected validation error for lone start_minute, got %v", err)
	}

	blockedWithWindow := model.DateOverride{OrganizerID: "org-1", Date: date, StartMinute: &start, EndMinute: &end}
	if err := validateOverride(blockedWithWindow); !model.IsValidation(err) {
		t.Fatalf("expected validation error for unavailable override with window, got %v", err)
	}

	noDate := model.DateOverride{OrganizerID: "org-1", IsAvailable: true}
	if err := validateOverride(noDate); !model.IsValidation(err) {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
}

func TestValidateRecurringBlockDateBounds(t *testing.T) {
	from := model.Date{Year: 2026, Month: time.March, Day: 1}
	to := model.Date{Year: 2026, Month: time.February, Day: 1}

	b := model.RecurringBlock{
		OrganizerID: "org-1",
		DayOfWeek:   4,
		StartMinute: 720,
		EndMinute:   780,
		StartDate:   &from,
		EndDate:     &to,
	}
	if err := validateRecurringBlock(b); !model.IsValidation(err) {
		t.Fatalf("expected validation error for inverted date bounds, got %v", err)
	}

	b.EndDate = nil
	if err := validateRecurringBlock(b); err != nil {
		t.Fatalf("open-ended block rejected: %v", err)
	}
}

func TestValidateBlockedTime(t *testing.T) {
	start := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)

	bt := model.BlockedTime{OrganizerID: "org-1", Start: start, End: start.Add(time.Hour)}
	if err := validateBlockedTime(bt); err != nil {
		t.Fatalf("valid blocked time rejected: %v", err)
	}

	bt.End = start
	if err := validateBlockedTime(bt); !model.IsValidation(err) {
		t.Fatalf("expected validation error for empty interval, got %v", err)
	}
}

func TestValidateBufferPolicy(t *testing.T) {
	p := model.DefaultBufferPolicy("org-1")
	if err := validateBufferPolicy(p); err != nil {
		t.Fatalf("default policy rejected: %v", err)
	}

	p.SlotIntervalMin = 0
	if err := validateBufferPolicy(p); !model.IsValidation(err) {
		t.Fatalf("expected validation error for zero slot interval, got %v", err)
	}

	p = model.DefaultBufferPolicy("org-1")
	p.BufferBeforeMin = -5
	if err := validateBufferPolicy(p); !model.IsValidation(err) {
		t.Fatalf("expected validation error for negative buffer, got %v", err)
	}
}
