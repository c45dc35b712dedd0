// Package resolver turns an organizer's rule set into concrete bookable
// slots for a date range and set of invitee timezones.
package resolver

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/tz"
)

// RuleSource supplies an organizer's complete rule state for a date range.
type RuleSource interface {
	RuleSet(ctx context.Context, organizerID string, from, to model.Date) (model.RuleSet, error)
}

// Catalog resolves event types (duration and organizer timezone).
type Catalog interface {
	EventType(ctx context.Context, organizerID, eventTypeID string) (model.EventType, error)
}

// FairnessRanker scores a slot start across invitee timezones; higher is
// fairer. Pluggable because ranking policy is a product decision, not an
// engine one.
type FairnessRanker interface {
	Score(startUTC time.Time, zones []*time.Location) float64
}

// Request is a single slot query.
type Request struct {
	OrganizerID   string
	EventTypeID   string
	StartDate     model.Date
	EndDate       model.Date
	Timezones     []string
	AttendeeCount int
	// Intersect drops slots falling outside daytime hours in any invitee
	// timezone; only meaningful with more than one timezone.
	Intersect bool
}

// Response carries the ordered slots plus cache/compute metadata.
type Response struct {
	Slots             []model.ResolvedSlot `json:"slots"`
	CacheHit          bool                 `json:"cache_hit"`
	ComputationTimeMs int64                `json:"computation_time_ms"`
}

// Daytime bounds used by intersected multi-timezone availability.
const (
	daytimeStartMinute = 7 * 60
	daytimeEndMinute   = 22 * 60
)

type Resolver struct {
	rules   RuleSource
	catalog Catalog

	// Clock gates out slots that already started; overridable in tests.
	Clock func() time.Time
	// Ranker scores multi-attendee slots; nil disables scoring.
	Ranker FairnessRanker
}

func NewResolver(rules RuleSource, catalog Catalog) *Resolver {
	return &Resolver{
		rules:   rules,
		catalog: catalog,
		Clock:   time.Now,
		Ranker:  MidpointRanker{},
	}
}

// Resolve runs the full pipeline. Only structurally invalid requests error;
// an organizer with no matching rules yields an empty slot list.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	if req.EndDate.Before(req.StartDate) {
		return Response{}, model.Invalid("date_range", "end_date is before start_date")
	}

	et, err := r.catalog.EventType(ctx, req.OrganizerID, req.EventTypeID)
	if err != nil {
		return Response{}, err
	}
	orgLoc, err := tz.LoadZone(et.Timezone)
	if err != nil {
		return Response{}, err
	}

	zoneNames := req.Timezones
	if len(zoneNames) == 0 {
		zoneNames = []string{et.Timezone}
	}
	locs := make([]*time.Location, 0, len(zoneNames))
	for _, name := range zoneNames {
		loc, err := tz.LoadZone(name)
		if err != nil {
			return Response{}, err
		}
		locs = append(locs, loc)
	}

	rs, err := r.rules.RuleSet(ctx, req.OrganizerID, req.StartDate, req.EndDate)
	if err != nil {
		return Response{}, err
	}

	now := r.Clock()
	var slots []model.ResolvedSlot
	for d := req.StartDate; !d.After(req.EndDate); d = d.AddDays(1) {
		slots = append(slots, r.resolveDay(d, et, rs, orgLoc, zoneNames, locs, now)...)
	}

	if req.Intersect && len(locs) > 1 {
		slots = filterDaytime(slots, locs)
	}
	if req.AttendeeCount > 1 && r.Ranker != nil {
		for i := range slots {
			slots[i].FairnessScore = r.Ranker.Score(slots[i].Start, locs)
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return Response{Slots: slots}, nil
}

func (r *Resolver) resolveDay(d model.Date, et model.EventType, rs model.RuleSet, orgLoc *time.Location, zoneNames []string, locs []*time.Location, now time.Time) []model.ResolvedSlot {
	ws := baseWindows(d, rs, et.ID)
	if len(ws) == 0 {
		return nil
	}
	ws = subtractRecurring(ws, d, rs.RecurringBlocks)
	ws = subtractBlocked(ws, d, rs.BlockedTimes, orgLoc)
	ws = shrink(ws, rs.Buffers.BufferBeforeMin, rs.Buffers.BufferAfterMin)
	return quantize(ws, d, et, rs.Buffers, orgLoc, zoneNames, locs, now)
}

// baseWindows applies precedence: an active matching override replaces all
// weekly rules for the date, full stop.
func baseWindows(d model.Date, rs model.RuleSet, eventTypeID string) []window {
	for _, o := range rs.Overrides {
		if !o.IsActive || o.Date != d || !o.AppliesTo(eventTypeID) {
			continue
		}
		if !o.IsAvailable {
			return nil
		}
		if w, ok := newWindow(o.Window()); ok {
			return []window{w}
		}
		return nil
	}

	var ws []window
	weekday := d.Weekday()
	for _, wr := range rs.Weekly {
		if !wr.IsActive || wr.DayOfWeek != weekday || !wr.AppliesTo(eventTypeID) {
			continue
		}
		if w, ok := newWindow(wr.StartMinute, wr.EndMinute); ok {
			ws = append(ws, w)
		}
	}
	sortWindows(ws)
	return ws
}

func subtractRecurring(ws []window, d model.Date, blocks []model.RecurringBlock) []window {
	limit := maxEnd(ws)
	prev := d.AddDays(-1)
	next := d.AddDays(1)
	for _, b := range blocks {
		if !b.IsActive {
			continue
		}
		end := b.EndMinute
		if b.SpansMidnight() {
			end += model.MinutesPerDay
		}
		if b.DayOfWeek == d.Weekday() && b.InEffect(d) {
			ws = subtract(ws, b.StartMinute, end)
		}
		// Yesterday's spanning block still covers this day's early hours.
		if b.DayOfWeek == prev.Weekday() && b.SpansMidnight() && b.InEffect(prev) {
			ws = subtract(ws, 0, b.EndMinute)
		}
		// Tomorrow's block is reachable when today's windows span midnight.
		if limit > model.MinutesPerDay && b.DayOfWeek == next.Weekday() && b.InEffect(next) {
			ws = subtract(ws, model.MinutesPerDay+b.StartMinute, model.MinutesPerDay+end)
		}
	}
	return ws
}

// subtractBlocked converts each absolute blocked interval to the day's
// local minute coordinates (clipped) and subtracts it.
func subtractBlocked(ws []window, d model.Date, blocked []model.BlockedTime, orgLoc *time.Location) []window {
	limit := maxEnd(ws)
	for _, bt := range blocked {
		if !bt.IsActive || !bt.End.After(bt.Start) {
			continue
		}
		sd, sm := tz.ToLocal(bt.Start, orgLoc)
		ed, em := tz.ToLocal(bt.End, orgLoc)
		relStart := d.DaysUntil(sd)*model.MinutesPerDay + sm
		relEnd := d.DaysUntil(ed)*model.MinutesPerDay + em
		if relStart < 0 {
			relStart = 0
		}
		if relEnd > limit {
			relEnd = limit
		}
		if relEnd > relStart {
			ws = subtract(ws, relStart, relEnd)
		}
	}
	return ws
}

func quantize(ws []window, d model.Date, et model.EventType, policy model.BufferPolicy, orgLoc *time.Location, zoneNames []string, locs []*time.Location, now time.Time) []model.ResolvedSlot {
	duration := et.DurationMinutes
	if duration <= 0 {
		return nil
	}
	step := policy.SlotIntervalMin
	if step <= 0 {
		step = duration
	}
	gap := policy.MinimumGapMin

	var out []model.ResolvedSlot
	for _, w := range ws {
		for s := w.start; s+duration+gap <= w.end; s += step {
			res := tz.ToUTC(d, s, orgLoc)
			start := res.Instant
			if start.Before(now) {
				continue
			}
			end := start.Add(time.Duration(duration) * time.Minute)
			slot := model.ResolvedSlot{
				Start:           start,
				End:             end,
				DurationMinutes: duration,
				DSTAdjusted:     res.Nonexistent || res.Ambiguous,
			}
			for i, loc := range locs {
				ls := start.In(loc)
				le := end.In(loc)
				slot.Local = append(slot.Local, model.LocalSlotView{
					Timezone:  zoneNames[i],
					Date:      model.DateOf(ls).String(),
					StartTime: model.FormatMinuteOfDay(ls.Hour()*60 + ls.Minute()),
					EndTime:   model.FormatMinuteOfDay(le.Hour()*60 + le.Minute()),
				})
			}
			out = append(out, slot)
		}
	}
	return out
}

// filterDaytime keeps slots whose local start falls inside daytime hours in
// every invitee timezone.
func filterDaytime(slots []model.ResolvedSlot, locs []*time.Location) []model.ResolvedSlot {
	out := slots[:0:0]
	for _, s := range slots {
		ok := true
		for _, loc := range locs {
			lt := s.Start.In(loc)
			m := lt.Hour()*60 + lt.Minute()
			if m < daytimeStartMinute || m >= daytimeEndMinute {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

// MidpointRanker scores slots by closeness of each invitee-local start to
// midday; 1.0 means noon everywhere, 0.0 means midnight somewhere.
type MidpointRanker struct{}

func (MidpointRanker) Score(startUTC time.Time, zones []*time.Location) float64 {
	if len(zones) == 0 {
		return 0
	}
	total := 0.0
	for _, loc := range zones {
		lt := startUTC.In(loc)
		m := float64(lt.Hour()*60 + lt.Minute())
		total += 1 - math.Abs(m-720)/720
	}
	return total / float64(len(zones))
}
