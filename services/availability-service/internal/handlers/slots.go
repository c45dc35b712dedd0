package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/resolver"
)

// SlotResolver is satisfied by both the plain and the cached resolver.
type SlotResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Response, error)
}

// SlotsHandler serves the public booking-page query. It is unauthenticated:
// slot availability is what organizers publish to the world.
type SlotsHandler struct {
	resolver SlotResolver
	logger   *slog.Logger
	maxDays  int
}

func NewSlotsHandler(res SlotResolver, logger *slog.Logger, maxDays int) *SlotsHandler {
	if maxDays <= 0 {
		maxDays = 31
	}
	return &SlotsHandler{resolver: res, logger: logger, maxDays: maxDays}
}

func (h *SlotsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	organizerID := strings.TrimSpace(q.Get("organizer_id"))
	eventTypeID := strings.TrimSpace(q.Get("event_type_id"))
	if organizerID == "" || eventTypeID == "" {
		http.Error(w, "organizer_id and event_type_id are required", http.StatusBadRequest)
		return
	}

	startDate, err := model.ParseDate(strings.TrimSpace(q.Get("start_date")))
	if err != nil {
		writeError(w, model.Invalid("start_date", "must be YYYY-MM-DD"))
		return
	}
	endDate, err := model.ParseDate(strings.TrimSpace(q.Get("end_date")))
	if err != nil {
		writeError(w, model.Invalid("end_date", "must be YYYY-MM-DD"))
		return
	}
	if days := startDate.DaysUntil(endDate) + 1; days > h.maxDays {
		writeError(w, model.Invalid("date_range", "range exceeds "+strconv.Itoa(h.maxDays)+" days"))
		return
	}

	var zones []string
	if raw := strings.TrimSpace(q.Get("timezones")); raw != "" {
		for _, z := range strings.Split(raw, ",") {
			if z = strings.TrimSpace(z); z != "" {
				zones = append(zones, z)
			}
		}
	}

	attendees := 1
	if raw := strings.TrimSpace(q.Get("attendee_count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, model.Invalid("attendee_count", "must be a positive integer"))
			return
		}
		attendees = n
	}
	intersect := q.Get("intersect") == "1" || q.Get("intersect") == "true"

	resp, err := h.resolver.Resolve(r.Context(), resolver.Request{
		OrganizerID:   organizerID,
		EventTypeID:   eventTypeID,
		StartDate:     startDate,
		EndDate:       endDate,
		Timezones:     zones,
		AttendeeCount: attendees,
		Intersect:     intersect,
	})
	if err != nil {
		if !model.IsValidation(err) {
			h.logger.Error("slot resolution failed", "organizer_id", organizerID, "err", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
