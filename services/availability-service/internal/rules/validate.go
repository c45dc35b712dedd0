package rules

import (
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Minute fields are wall-clock minutes since local midnight. An end smaller
// than its start is legal on weekly rules and recurring blocks and means the
// window continues past midnight.

func validateWeekly(wr model.WeeklyRule) error {
	if wr.OrganizerID == "" {
		return model.Invalid("organizer_id", "required")
	}
	if wr.DayOfWeek < 0 || wr.DayOfWeek > 6 {
		return model.Invalid("day_of_week", "must be 0 (Monday) through 6 (Sunday)")
	}
	return validateMinutes(wr.StartMinute, wr.EndMinute)
}

func validateOverride(o model.DateOverride) error {
	if o.OrganizerID == "" {
		return model.Invalid("organizer_id", "required")
	}
	if o.Date.IsZero() {
		return model.Invalid("date", "required")
	}
	if (o.StartMinute == nil) != (o.EndMinute == nil) {
		return model.Invalid("start_minute", "start and end must be set together")
	}
	if o.StartMinute != nil {
		if !o.IsAvailable {
			return model.Invalid("start_minute", "an unavailable override cannot carry a window")
		}
		return validateMinutes(*o.StartMinute, *o.EndMinute)
	}
	return nil
}

func validateRecurringBlock(b model.RecurringBlock) error {
	if b.OrganizerID == "" {
		return model.Invalid("organizer_id", "required")
	}
	if b.DayOfWeek < 0 || b.DayOfWeek > 6 {
		return model.Invalid("day_of_week", "must be 0 (Monday) through 6 (Sunday)")
	}
	if b.StartDate != nil && b.EndDate != nil && b.EndDate.Before(*b.StartDate) {
		return model.Invalid("end_date", "must not precede start_date")
	}
	return validateMinutes(b.StartMinute, b.EndMinute)
}

func validateBlockedTime(bt model.BlockedTime) error {
	if bt.OrganizerID == "" {
		return model.Invalid("organizer_id", "required")
	}
	if bt.Start.IsZero() || bt.End.IsZero() {
		return model.Invalid("start_time", "start and end are required")
	}
	if !bt.End.After(bt.Start) {
		return model.Invalid("end_time", "must be after start_time")
	}
	return nil
}

func validateBufferPolicy(p model.BufferPolicy) error {
	if p.OrganizerID == "" {
		return model.Invalid("organizer_id", "required")
	}
	if p.BufferBeforeMin < 0 || p.BufferAfterMin < 0 || p.MinimumGapMin < 0 {
		return model.Invalid("buffers", "must not be negative")
	}
	if p.SlotIntervalMin <= 0 {
		return model.Invalid("slot_interval_minutes", "must be positive")
	}
	return nil
}

func validateMinutes(start, end int) error {
	if start < 0 || start >= model.MinutesPerDay {
		return model.Invalid("start_minute", "must be within 0..1439")
	}
	if end <= 0 || end > model.MinutesPerDay {
		return model.Invalid("end_minute", "must be within 1..1440")
	}
	if start == end {
		return model.Invalid("end_minute", "window must not be empty")
	}
	return nil
}
