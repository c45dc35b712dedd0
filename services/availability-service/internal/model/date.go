package model

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no timezone attached. Which instant it covers
// depends on the zone it is interpreted in.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, Invalid("date", fmt.Sprintf("must be YYYY-MM-DD (got %q)", s))
	}
	return DateOf(t), nil
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// anchor pins the date in UTC at noon so day arithmetic never crosses a
// calendar boundary through normalization.
func (d Date) anchor() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.anchor().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.anchor().Before(o.anchor())
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// DaysUntil returns the number of calendar days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.anchor().Sub(d.anchor()) / (24 * time.Hour))
}

// Weekday returns the day of week with 0=Monday .. 6=Sunday.
func (d Date) Weekday() int {
	return (int(d.anchor().Weekday()) + 6) % 7
}

// DateRange is an inclusive calendar-day range.
type DateRange struct {
	Start Date
	End   Date
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) Intersects(o DateRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// MinutesPerDay is the length of a civil day in the minutes-since-midnight
// coordinate space used by rules and windows. DST-affected days still use
// 1440; wall-clock minutes, not elapsed minutes.
const MinutesPerDay = 1440

// ParseMinuteOfDay parses "HH:MM" into minutes since midnight.
func ParseMinuteOfDay(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, Invalid("time", fmt.Sprintf("must be HH:MM (got %q)", s))
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, Invalid("time", fmt.Sprintf("out of range (got %q)", s))
	}
	return hh*60 + mm, nil
}

// FormatMinuteOfDay renders minutes since midnight as "HH:MM". Values at or
// past 1440 wrap into the next day's clock.
func FormatMinuteOfDay(m int) string {
	m = ((m % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
