package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/timegrid/libs/db"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// DBProvider reads event types from Postgres with a short-lived LRU in
// front; catalog entries change rarely but are read on every slot query.
type DBProvider struct {
	pool  *db.Pool
	cache *expirable.LRU[string, model.EventType]
}

func NewDBProvider(pool *db.Pool) *DBProvider {
	return &DBProvider{
		pool:  pool,
		cache: expirable.NewLRU[string, model.EventType](512, nil, 5*time.Minute),
	}
}

func (p *DBProvider) EventType(ctx context.Context, organizerID, eventTypeID string) (model.EventType, error) {
	cacheKey := organizerID + "/" + eventTypeID
	if et, ok := p.cache.Get(cacheKey); ok {
		return et, nil
	}

	var et model.EventType
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, name, duration_minutes, timezone
		FROM event_types
		WHERE organizer_id = $1 AND id = $2
	`, organizerID, eventTypeID).Scan(&et.ID, &et.OrganizerID, &et.Name, &et.DurationMinutes, &et.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.EventType{}, model.ErrNotFound
	}
	if err != nil {
		return model.EventType{}, err
	}
	p.cache.Add(cacheKey, et)
	return et, nil
}

func (p *DBProvider) ListEventTypes(ctx context.Context, organizerID string) ([]model.EventType, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, name, duration_minutes, timezone
		FROM event_types
		WHERE organizer_id = $1
		ORDER BY created_at ASC
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventType
	for rows.Next() {
		var et model.EventType
		if err := rows.Scan(&et.ID, &et.OrganizerID, &et.Name, &et.DurationMinutes, &et.Timezone); err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
