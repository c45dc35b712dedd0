// Package tz converts between organizer-local wall clock and absolute
// instants using the IANA zone database, with explicit handling of DST
// gaps and overlaps instead of whatever time.Date happens to pick.
package tz

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Resolution is the outcome of mapping a local wall-clock time to an instant.
type Resolution struct {
	Instant time.Time
	// Nonexistent marks a wall-clock time skipped by a spring-forward
	// transition; Instant is the first valid instant after the gap.
	Nonexistent bool
	// Ambiguous marks a wall-clock time that occurs twice on a fall-back
	// transition; Instant is the earlier of the two by convention.
	Ambiguous bool
}

// LoadZone validates and loads an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, model.Invalid("timezone", "must not be empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, model.Invalid("timezone", fmt.Sprintf("unknown IANA zone %q", name))
	}
	return loc, nil
}

// ToUTC maps (date, minutes since midnight) in loc to a UTC instant.
// minuteOfDay values of 1440 and above roll into following days, which is
// how midnight-spanning windows address their far side.
func ToUTC(d model.Date, minuteOfDay int, loc *time.Location) Resolution {
	d = d.AddDays(minuteOfDay / model.MinutesPerDay)
	m := minuteOfDay % model.MinutesPerDay

	t := time.Date(d.Year, d.Month, d.Day, m/60, m%60, 0, 0, loc)
	if clockOf(t) == m && model.DateOf(t) == d {
		res := Resolution{Instant: t.UTC()}
		// A second instant with the same wall clock means we are inside a
		// fall-back overlap; resolve to the earlier UTC instant.
		if alt, ok := alternate(t, d, m); ok {
			res.Ambiguous = true
			if alt.Before(t) {
				res.Instant = alt.UTC()
			}
		}
		return res
	}

	// The requested wall clock does not exist: time.Date normalized it past
	// a spring-forward gap. Shift to the first valid instant, which is the
	// transition boundary itself.
	return Resolution{Instant: gapStart(t).UTC(), Nonexistent: true}
}

// ToLocal maps an instant to (date, minutes since midnight) in loc.
func ToLocal(t time.Time, loc *time.Location) (model.Date, int) {
	lt := t.In(loc)
	return model.DateOf(lt), clockOf(lt)
}

// IsDSTTransitionDate reports whether the zone offset changes during the
// given local calendar day. Diagnostic only; it never alters resolution.
func IsDSTTransitionDate(d model.Date, loc *time.Location) bool {
	noon := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc)
	_, before := noon.Add(-12 * time.Hour).Zone()
	_, after := noon.Add(12 * time.Hour).Zone()
	return before != after
}

// OffsetHours returns the zone's UTC offset at local noon of the date, in
// hours (fractional for zones like Asia/Kolkata).
func OffsetHours(d model.Date, loc *time.Location) float64 {
	_, off := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc).Zone()
	return float64(off) / 3600
}

// DSTActive reports whether daylight saving is in effect at local noon.
func DSTActive(d model.Date, loc *time.Location) bool {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc).IsDST()
}

func clockOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// alternate probes for a second instant sharing t's wall clock. DST deltas
// in the wild are 30 or 60 minutes; probing both directions covers them.
func alternate(t time.Time, d model.Date, m int) (time.Time, bool) {
	for _, delta := range []time.Duration{-time.Hour, time.Hour, -30 * time.Minute, 30 * time.Minute} {
		cand := t.Add(delta)
		if cand.Equal(t) {
			continue
		}
		if clockOf(cand) == m && model.DateOf(cand) == d {
			return cand, true
		}
	}
	return time.Time{}, false
}

// gapStart finds the transition instant preceding t (a time.Date result that
// got normalized across a gap) by binary-searching for the offset change.
func gapStart(t time.Time) time.Time {
	lo := t.Add(-4 * time.Hour)
	hi := t
	_, offLo := lo.Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.Zone(); off == offLo {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi.Truncate(time.Second)
}
