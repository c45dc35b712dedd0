// Package validator rejects rule writes that would leave two active rules of
// the same kind colliding on a weekday or date. It is advisory for
// authoring only: resolution never consults it and always produces an
// answer from whatever rules exist.
package validator

import (
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/interval"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Adjacency counts as a conflict for authoring: back-to-back rules with no
// gap are ambiguous once buffer policy is applied.
const allowAdjacency = true

// FindWeeklyConflict returns the first existing active rule on the same
// weekday whose interval overlaps or touches the candidate's, or nil.
// Iteration order is input order so error messages are deterministic.
func FindWeeklyConflict(candidate model.WeeklyRule, existing []model.WeeklyRule, excludeID string) *model.WeeklyRule {
	for i := range existing {
		r := &existing[i]
		if !r.IsActive || r.ID == excludeID || r.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		if interval.Overlaps(candidate.StartMinute, candidate.EndMinute, r.StartMinute, r.EndMinute, allowAdjacency) {
			return r
		}
	}
	return nil
}

// FindOverrideConflict returns the first existing active override on the
// same date that collides with the candidate. An unavailable override (or
// one without an explicit window) occupies the whole day.
func FindOverrideConflict(candidate model.DateOverride, existing []model.DateOverride, excludeID string) *model.DateOverride {
	cs, ce := overrideInterval(candidate)
	for i := range existing {
		o := &existing[i]
		if !o.IsActive || o.ID == excludeID || o.Date != candidate.Date {
			continue
		}
		os, oe := overrideInterval(*o)
		if interval.Overlaps(cs, ce, os, oe, allowAdjacency) {
			return o
		}
	}
	return nil
}

// FindRecurringBlockConflict returns the first existing active block on the
// same weekday with overlapping effective dates and a colliding interval.
func FindRecurringBlockConflict(candidate model.RecurringBlock, existing []model.RecurringBlock, excludeID string) *model.RecurringBlock {
	for i := range existing {
		b := &existing[i]
		if !b.IsActive || b.ID == excludeID || b.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		if !boundsOverlap(candidate, *b) {
			continue
		}
		if interval.Overlaps(candidate.StartMinute, candidate.EndMinute, b.StartMinute, b.EndMinute, allowAdjacency) {
			return b
		}
	}
	return nil
}

// HasConflict is the boolean fast path for gating submit buttons; it skips
// identifying the colliding rule.
func HasConflict(aStart, aEnd, bStart, bEnd int) bool {
	return interval.Overlaps(aStart, aEnd, bStart, bEnd, allowAdjacency)
}

func overrideInterval(o model.DateOverride) (int, int) {
	if !o.IsAvailable {
		return 0, model.MinutesPerDay
	}
	return o.Window()
}

func boundsOverlap(a, b model.RecurringBlock) bool {
	if a.StartDate != nil && b.EndDate != nil && b.EndDate.Before(*a.StartDate) {
		return false
	}
	if a.EndDate != nil && b.StartDate != nil && b.StartDate.After(*a.EndDate) {
		return false
	}
	return true
}
