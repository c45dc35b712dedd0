package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type conflictBody struct {
	Error       string `json:"error"`
	RuleKind    string `json:"rule_kind"`
	RuleID      string `json:"rule_id"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become an
// opaque 500 so internals never leak to callers.
func writeError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}
	var ce *model.ConflictError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, conflictBody{
			Error:       ce.Error(),
			RuleKind:    ce.RuleKind,
			RuleID:      ce.RuleID,
			StartMinute: ce.StartMinute,
			EndMinute:   ce.EndMinute,
		})
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if errors.Is(err, model.ErrReadOnlySource) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
