package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/rules"
)

// CalendarSyncTopic carries busy intervals observed in connected external
// calendars. One message describes one busy interval upsert or removal.
const CalendarSyncTopic = "calendar.sync.busy.v1"

type busyIntervalEvent struct {
	OrganizerID string `json:"organizer_id"`
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason"`
	Cancelled   bool   `json:"cancelled"`
}

// CalendarSyncHandler maps busy-interval events onto externally sourced
// blocked times. Cancelled intervals stay in the table deactivated so a
// late redelivery of the original cannot resurrect them.
func CalendarSyncHandler(svc *rules.Service, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt busyIntervalEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			// Malformed payloads are logged and dropped; retrying cannot fix them.
			logger.Error("malformed calendar sync payload", "err", err)
			return nil
		}

		start, err := time.Parse(time.RFC3339, evt.StartTime)
		if err != nil {
			logger.Error("malformed calendar sync start_time", "value", evt.StartTime, "err", err)
			return nil
		}
		end, err := time.Parse(time.RFC3339, evt.EndTime)
		if err != nil {
			logger.Error("malformed calendar sync end_time", "value", evt.EndTime, "err", err)
			return nil
		}

		bt := model.BlockedTime{
			OrganizerID: evt.OrganizerID,
			Start:       start,
			End:         end,
			Reason:      evt.Reason,
			Source:      evt.Source,
			ExternalID:  evt.ExternalID,
			IsActive:    !evt.Cancelled,
		}
		if err := svc.UpsertExternalBlockedTime(ctx, &bt); err != nil {
			if model.IsValidation(err) {
				logger.Error("invalid calendar sync event", "organizer_id", evt.OrganizerID, "err", err)
				return nil
			}
			return fmt.Errorf("upsert external blocked time: %w", err)
		}

		logger.Info("calendar busy interval synced",
			"organizer_id", evt.OrganizerID,
			"source", evt.Source,
			"external_id", evt.ExternalID,
			"cancelled", evt.Cancelled,
		)
		return nil
	}
}
