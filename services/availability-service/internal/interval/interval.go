// Package interval is the single source of truth for time-of-day range
// arithmetic. Both the authoring-time conflict validator and the slot
// resolver go through these functions so overlap semantics never diverge.
//
// All values are minutes since local midnight. An interval whose end reads
// before its start spans midnight and is normalized by adding a day.
package interval

const minutesPerDay = 1440

// SpansMidnight reports whether the interval continues past 24:00.
func SpansMidnight(start, end int) bool {
	return end < start
}

// Overlaps reports whether two time-of-day intervals collide after
// midnight-spanning normalization. With allowAdjacency=true, intervals that
// merely touch (a.end == b.start) also count as overlapping, which is what
// rule authoring wants. Malformed input yields false, never a panic.
func Overlaps(aStart, aEnd, bStart, bEnd int, allowAdjacency bool) bool {
	aStart, aEnd, ok := normalize(aStart, aEnd)
	if !ok {
		return false
	}
	bStart, bEnd, ok = normalize(bStart, bEnd)
	if !ok {
		return false
	}
	if allowAdjacency {
		return aStart <= bEnd && aEnd >= bStart
	}
	return aStart < bEnd && aEnd > bStart
}

// DurationMinutes returns the interval length, midnight-adjusted.
// Malformed input yields 0.
func DurationMinutes(start, end int) int {
	start, end, ok := normalize(start, end)
	if !ok {
		return 0
	}
	return end - start
}

func normalize(start, end int) (int, int, bool) {
	if start < 0 || start >= minutesPerDay || end < 0 || end > minutesPerDay {
		return 0, 0, false
	}
	if end < start {
		end += minutesPerDay
	}
	if end == start {
		// Zero-length intervals carry no time and cannot collide.
		return 0, 0, false
	}
	return start, end, true
}
