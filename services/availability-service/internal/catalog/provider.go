// Package catalog looks up event types (duration, organizer timezone) from
// the event-type catalog. The catalog is an external collaborator: in the
// default build it reads the shared database; with the protogen build tag a
// gRPC client against the catalog service is available instead.
package catalog

import (
	"context"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

type Provider interface {
	EventType(ctx context.Context, organizerID, eventTypeID string) (model.EventType, error)
	ListEventTypes(ctx context.Context, organizerID string) ([]model.EventType, error)
}
