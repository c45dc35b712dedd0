//go:build protogen

package catalog

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/timegrid/libs/grpcx"
	catalogv1 "github.com/md-rashed-zaman/timegrid/protos/gen/catalog/v1"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

type grpcProvider struct {
	client catalogv1.CatalogServiceClient
}

// NewGRPCProvider dials the catalog service. Returns (nil, nil) when no
// address is configured so callers fall back to the database provider.
func NewGRPCProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn)}, nil
}

func (p *grpcProvider) EventType(ctx context.Context, organizerID, eventTypeID string) (model.EventType, error) {
	resp, err := p.client.GetEventType(ctx, &catalogv1.GetEventTypeRequest{
		OrganizerId: organizerID,
		EventTypeId: eventTypeID,
	})
	if err != nil {
		return model.EventType{}, err
	}
	return model.EventType{
		ID:              resp.GetId(),
		OrganizerID:     resp.GetOrganizerId(),
		Name:            resp.GetName(),
		DurationMinutes: int(resp.GetDurationMinutes()),
		Timezone:        resp.GetTimezone(),
	}, nil
}

func (p *grpcProvider) ListEventTypes(ctx context.Context, organizerID string) ([]model.EventType, error) {
	resp, err := p.client.ListEventTypes(ctx, &catalogv1.ListEventTypesRequest{OrganizerId: organizerID})
	if err != nil {
		return nil, err
	}
	out := make([]model.EventType, 0, len(resp.GetEventTypes()))
	for _, et := range resp.GetEventTypes() {
		out = append(out, model.EventType{
			ID:              et.GetId(),
			OrganizerID:     et.GetOrganizerId(),
			Name:            et.GetName(),
			DurationMinutes: int(et.GetDurationMinutes()),
			Timezone:        et.GetTimezone(),
		})
	}
	return out, nil
}
