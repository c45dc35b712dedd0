package model

import "time"

// Blocked time sources. Anything other than SourceManual is owned by the
// external calendar sync feed and read-only through the rules API.
const (
	SourceManual  = "manual"
	SourceGoogle  = "google"
	SourceOutlook = "outlook"
)

// WeeklyRule opens a recurring weekly window in the organizer's local clock.
// An empty EventTypeIDs set applies the rule to every event type.
type WeeklyRule struct {
	ID           string
	OrganizerID  string
	DayOfWeek    int // 0=Monday .. 6=Sunday
	StartMinute  int
	EndMinute    int
	EventTypeIDs []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SpansMidnight is derived, never stored: an end read literally before the
// start means the window continues past 24:00 into the next day.
func (r WeeklyRule) SpansMidnight() bool {
	return r.EndMinute < r.StartMinute
}

func (r WeeklyRule) AppliesTo(eventTypeID string) bool {
	return appliesTo(r.EventTypeIDs, eventTypeID)
}

// DateOverride replaces all weekly rules for one specific organizer-local
// date. IsAvailable=false blocks the whole day; otherwise StartMinute and
// EndMinute (both nil means the full day) define the single window.
type DateOverride struct {
	ID           string
	OrganizerID  string
	Date         Date
	IsAvailable  bool
	StartMinute  *int
	EndMinute    *int
	EventTypeIDs []string
	Reason       string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (o DateOverride) SpansMidnight() bool {
	return o.StartMinute != nil && o.EndMinute != nil && *o.EndMinute < *o.StartMinute
}

func (o DateOverride) AppliesTo(eventTypeID string) bool {
	return appliesTo(o.EventTypeIDs, eventTypeID)
}

// Window returns the override's availability window in minutes since
// midnight. A missing window on an available override means the whole day.
func (o DateOverride) Window() (start, end int) {
	if o.StartMinute == nil || o.EndMinute == nil {
		return 0, MinutesPerDay
	}
	return *o.StartMinute, *o.EndMinute
}

// RecurringBlock subtracts a weekly slice (lunch, standing meeting) from
// availability, optionally bounded to an effective date range.
type RecurringBlock struct {
	ID          string
	OrganizerID string
	Name        string
	DayOfWeek   int
	StartMinute int
	EndMinute   int
	StartDate   *Date // nil = open-ended backwards
	EndDate     *Date // nil = open-ended forwards
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b RecurringBlock) SpansMidnight() bool {
	return b.EndMinute < b.StartMinute
}

// InEffect reports whether the block's date bounds contain d.
func (b RecurringBlock) InEffect(d Date) bool {
	if b.StartDate != nil && d.Before(*b.StartDate) {
		return false
	}
	if b.EndDate != nil && d.After(*b.EndDate) {
		return false
	}
	return true
}

// BlockedTime subtracts one absolute interval from availability,
// unconditionally. Non-manual rows come from the calendar sync feed.
type BlockedTime struct {
	ID          string
	OrganizerID string
	Start       time.Time
	End         time.Time
	Reason      string
	Source      string
	ExternalID  string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BufferPolicy is the per-organizer spacing configuration threaded through
// every resolution call; it is never ambient state.
type BufferPolicy struct {
	OrganizerID     string
	BufferBeforeMin int
	BufferAfterMin  int
	MinimumGapMin   int
	SlotIntervalMin int
}

func DefaultBufferPolicy(organizerID string) BufferPolicy {
	return BufferPolicy{OrganizerID: organizerID, SlotIntervalMin: 30}
}

// EventType is the catalog entry resolution runs against. Timezone is the
// organizer's IANA zone for this event type.
type EventType struct {
	ID              string
	OrganizerID     string
	Name            string
	DurationMinutes int
	Timezone        string
}

// RuleSet is one organizer's complete rule state for a date range, as the
// resolver consumes it.
type RuleSet struct {
	Weekly          []WeeklyRule
	Overrides       []DateOverride
	RecurringBlocks []RecurringBlock
	BlockedTimes    []BlockedTime
	Buffers         BufferPolicy
}

// LocalSlotView is a slot projected into one invitee timezone, preformatted
// so cached entries stay JSON-stable.
type LocalSlotView struct {
	Timezone  string `json:"timezone"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ResolvedSlot is one bookable window. Start/End are absolute UTC instants.
type ResolvedSlot struct {
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	DurationMinutes int             `json:"duration_minutes"`
	DSTAdjusted     bool            `json:"dst_adjusted,omitempty"`
	FairnessScore   float64         `json:"fairness_score,omitempty"`
	Local           []LocalSlotView `json:"local,omitempty"`
}

func appliesTo(scope []string, eventTypeID string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, id := range scope {
		if id == eventTypeID {
			return true
		}
	}
	return false
}
