// Package precompute keeps the availability cache warm for organizers with
// active rules so first-hit public slot queries stay fast.
package precompute

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/catalog"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/resolver"
)

// OrganizerSource lists organizers worth precomputing for.
type OrganizerSource interface {
	ActiveOrganizerIDs(ctx context.Context) ([]string, error)
}

// SlotResolver is satisfied by the cached resolver; warming is just
// resolving through the cache so misses populate it.
type SlotResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Response, error)
}

type Warmer struct {
	organizers OrganizerSource
	catalog    catalog.Provider
	resolver   SlotResolver
	logger     *slog.Logger

	interval    time.Duration
	horizonDays int
	clock       func() time.Time
}

type Config struct {
	Interval    time.Duration
	HorizonDays int
}

func NewWarmer(organizers OrganizerSource, cat catalog.Provider, res SlotResolver, logger *slog.Logger, cfg Config) *Warmer {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 14
	}
	return &Warmer{
		organizers:  organizers,
		catalog:     cat,
		resolver:    res,
		logger:      logger,
		interval:    cfg.Interval,
		horizonDays: cfg.HorizonDays,
		clock:       time.Now,
	}
}

func (w *Warmer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.warmAll(ctx)
		}
	}
}

// warmAll resolves one single-day query per (organizer, event type, day).
// Single-day granularity matches how booking pages query, so warmed entries
// are the ones real traffic hits. Failures skip the day and keep going.
func (w *Warmer) warmAll(ctx context.Context) {
	ids, err := w.organizers.ActiveOrganizerIDs(ctx)
	if err != nil {
		w.logger.Error("precompute organizer listing failed", "err", err)
		return
	}

	today := model.DateOf(w.clock().UTC())
	warmed, failed := 0, 0

	for _, organizerID := range ids {
		if ctx.Err() != nil {
			return
		}
		eventTypes, err := w.catalog.ListEventTypes(ctx, organizerID)
		if err != nil {
			w.logger.Error("precompute catalog listing failed", "organizer_id", organizerID, "err", err)
			continue
		}
		for _, et := range eventTypes {
			for i := 0; i < w.horizonDays; i++ {
				if ctx.Err() != nil {
					return
				}
				day := today.AddDays(i)
				_, err := w.resolver.Resolve(ctx, resolver.Request{
					OrganizerID: organizerID,
					EventTypeID: et.ID,
					StartDate:   day,
					EndDate:     day,
				})
				if err != nil {
					failed++
					w.logger.Warn("precompute day failed",
						"organizer_id", organizerID, "event_type_id", et.ID, "date", day.String(), "err", err)
					continue
				}
				warmed++
			}
		}
	}

	w.logger.Info("precompute sweep done", "organizers", len(ids), "warmed", warmed, "failed", failed)
}
