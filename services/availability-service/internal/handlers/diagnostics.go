package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/tz"
)

// StatsSource exposes cache counters; satisfied by the cached resolver.
type StatsSource interface {
	Stats() cache.Snapshot
}

// DiagnosticsHandler answers operational questions: is this timezone valid,
// does this date cross a DST transition, how is the cache doing.
type DiagnosticsHandler struct {
	stats StatsSource
}

func NewDiagnosticsHandler(stats StatsSource) *DiagnosticsHandler {
	return &DiagnosticsHandler{stats: stats}
}

type timezoneDiagnostics struct {
	Timezone          string  `json:"timezone"`
	Valid             bool    `json:"valid"`
	Date              string  `json:"date,omitempty"`
	UTCOffsetHours    float64 `json:"utc_offset_hours,omitempty"`
	DSTActive         bool    `json:"dst_active,omitempty"`
	DSTTransitionDate bool    `json:"dst_transition_date,omitempty"`
}

func (h *DiagnosticsHandler) Timezone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("tz"))
	if name == "" {
		writeError(w, model.Invalid("tz", "required"))
		return
	}

	date := model.DateOf(time.Now().UTC())
	if s := strings.TrimSpace(r.URL.Query().Get("date")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			writeError(w, model.Invalid("date", "must be YYYY-MM-DD"))
			return
		}
		date = d
	}

	loc, err := tz.LoadZone(name)
	if err != nil {
		// An unknown zone is an answer, not an error.
		writeJSON(w, http.StatusOK, timezoneDiagnostics{Timezone: name, Valid: false})
		return
	}

	writeJSON(w, http.StatusOK, timezoneDiagnostics{
		Timezone:          name,
		Valid:             true,
		Date:              date.String(),
		UTCOffsetHours:    tz.OffsetHours(date, loc),
		DSTActive:         tz.DSTActive(date, loc),
		DSTTransitionDate: tz.IsDSTTransitionDate(date, loc),
	})
}

func (h *DiagnosticsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}
