package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (production-style: event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topic published whenever an organizer's rule store changes. Consumers use
// it to drop derived state such as precomputed availability.
const RulesChangedEventType = "availability.rules.changed.v1"

// RulesChangedPayload describes which organizer changed and what kind of
// rule was touched. Dates are RFC 3339 full-date strings; empty bounds mean
// the change affects an open-ended range.
type RulesChangedPayload struct {
	OrganizerID string `json:"organizer_id"`
	RuleKind    string `json:"rule_kind"`
	RuleID      string `json:"rule_id"`
	Action      string `json:"action"`
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
}
