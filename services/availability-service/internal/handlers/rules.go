package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/rules"
)

// RulesHandler exposes the authoring API over the rule store. Every endpoint
// is organizer-scoped; the organizer comes from the auth layer, never from
// the payload.
type RulesHandler struct {
	svc       *rules.Service
	logger    *slog.Logger
	jwtSecret string
}

func NewRulesHandler(svc *rules.Service, logger *slog.Logger, jwtSecret string) *RulesHandler {
	return &RulesHandler{svc: svc, logger: logger, jwtSecret: jwtSecret}
}

func (h *RulesHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := organizerID(r, h.jwtSecret)
	if org == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return org, true
}

// --- weekly rules ---

type weeklyRuleDTO struct {
	ID           string   `json:"id"`
	DayOfWeek    int      `json:"day_of_week"`
	StartMinute  int      `json:"start_minute"`
	EndMinute    int      `json:"end_minute"`
	EventTypeIDs []string `json:"event_type_ids,omitempty"`
	IsActive     bool     `json:"is_active"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type weeklyRuleRequest struct {
	ID           string   `json:"id"`
	DayOfWeek    int      `json:"day_of_week"`
	StartMinute  int      `json:"start_minute"`
	EndMinute    int      `json:"end_minute"`
	EventTypeIDs []string `json:"event_type_ids"`
	IsActive     *bool    `json:"is_active"`
}

func (h *RulesHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.svc.ListWeeklyRules(r.Context(), org)
		if err != nil {
			h.logger.Error("weekly rule listing failed", "err", err)
			writeError(w, err)
			return
		}
		out := make([]weeklyRuleDTO, 0, len(list))
		for _, wr := range list {
			out = append(out, weeklyToDTO(wr))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req weeklyRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		wr := weeklyFromRequest(org, req)
		if err := h.svc.CreateWeeklyRule(r.Context(), &wr); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, weeklyToDTO(wr))

	case http.MethodPut:
		var req weeklyRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		wr := weeklyFromRequest(org, req)
		wr.ID = req.ID
		if err := h.svc.UpdateWeeklyRule(r.Context(), &wr); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weeklyToDTO(wr))

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.DeleteWeeklyRule(r.Context(), org, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func weeklyFromRequest(org string, req weeklyRuleRequest) model.WeeklyRule {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return model.WeeklyRule{
		OrganizerID:  org,
		DayOfWeek:    req.DayOfWeek,
		StartMinute:  req.StartMinute,
		EndMinute:    req.EndMinute,
		EventTypeIDs: req.EventTypeIDs,
		IsActive:     active,
	}
}

func weeklyToDTO(wr model.WeeklyRule) weeklyRuleDTO {
	return weeklyRuleDTO{
		ID:           wr.ID,
		DayOfWeek:    wr.DayOfWeek,
		StartMinute:  wr.StartMinute,
		EndMinute:    wr.EndMinute,
		EventTypeIDs: wr.EventTypeIDs,
		IsActive:     wr.IsActive,
		CreatedAt:    formatTimestamp(wr.CreatedAt),
		UpdatedAt:    formatTimestamp(wr.UpdatedAt),
	}
}

// --- date overrides ---

type overrideDTO struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	IsAvailable  bool     `json:"is_available"`
	StartMinute  *int     `json:"start_minute,omitempty"`
	EndMinute    *int     `json:"end_minute,omitempty"`
	EventTypeIDs []string `json:"event_type_ids,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	IsActive     bool     `json:"is_active"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type overrideRequest struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	IsAvailable  bool     `json:"is_available"`
	StartMinute  *int     `json:"start_minute"`
	EndMinute    *int     `json:"end_minute"`
	EventTypeIDs []string `json:"event_type_ids"`
	Reason       string   `json:"reason"`
	IsActive     *bool    `json:"is_active"`
}

func (h *RulesHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, to, err := optionalDateRange(r)
		if err != nil {
			writeError(w, err)
			return
		}
		list, err := h.svc.ListDateOverrides(r.Context(), org, from, to)
		if err != nil {
			h.logger.Error("override listing failed", "err", err)
			writeError(w, err)
			return
		}
		out := make([]overrideDTO, 0, len(list))
		for _, o := range list {
			out = append(out, overrideToDTO(o))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		o, err := h.decodeOverride(org, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.svc.CreateDateOverride(r.Context(), &o); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, overrideToDTO(o))

	case http.MethodPut:
		o, err := h.decodeOverride(org, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if o.ID == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.UpdateDateOverride(r.Context(), &o); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, overrideToDTO(o))

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.DeleteDateOverride(r.Context(), org, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RulesHandler) decodeOverride(org string, r *http.Request) (model.DateOverride, error) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.DateOverride{}, model.Invalid("body", "invalid json")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return model.DateOverride{}, model.Invalid("date", "must be YYYY-MM-DD")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return model.DateOverride{
		ID:           strings.TrimSpace(req.ID),
		OrganizerID:  org,
		Date:         date,
		IsAvailable:  req.IsAvailable,
		StartMinute:  req.StartMinute,
		EndMinute:    req.EndMinute,
		EventTypeIDs: req.EventTypeIDs,
		Reason:       strings.TrimSpace(req.Reason),
		IsActive:     active,
	}, nil
}

func overrideToDTO(o model.DateOverride) overrideDTO {
	return overrideDTO{
		ID:           o.ID,
		Date:         o.Date.String(),
		IsAvailable:  o.IsAvailable,
		StartMinute:  o.StartMinute,
		EndMinute:    o.EndMinute,
		EventTypeIDs: o.EventTypeIDs,
		Reason:       o.Reason,
		IsActive:     o.IsActive,
		CreatedAt:    formatTimestamp(o.CreatedAt),
		UpdatedAt:    formatTimestamp(o.UpdatedAt),
	}
}

// --- recurring blocks ---

type recurringBlockDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type recurringBlockRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DayOfWeek   int    `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsActive    *bool  `json:"is_active"`
}

func (h *RulesHandler) RecurringBlocks(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.svc.ListRecurringBlocks(r.Context(), org)
		if err != nil {
			h.logger.Error("recurring block listing failed", "err", err)
			writeError(w, err)
			return
		}
		out := make([]recurringBlockDTO, 0, len(list))
		for _, b := range list {
			out = append(out, blockToDTO(b))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		b, err := h.decodeRecurringBlock(org, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.svc.CreateRecurringBlock(r.Context(), &b); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, blockToDTO(b))

	case http.MethodPut:
		b, err := h.decodeRecurringBlock(org, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if b.ID == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.UpdateRecurringBlock(r.Context(), &b); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, blockToDTO(b))

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.DeleteRecurringBlock(r.Context(), org, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RulesHandler) decodeRecurringBlock(org string, r *http.Request) (model.RecurringBlock, error) {
	var req recurringBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.RecurringBlock{}, model.Invalid("body", "invalid json")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	b := model.RecurringBlock{
		ID:          strings.TrimSpace(req.ID),
		OrganizerID: org,
		Name:        strings.TrimSpace(req.Name),
		DayOfWeek:   req.DayOfWeek,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		IsActive:    active,
	}
	if s := strings.TrimSpace(req.StartDate); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return model.RecurringBlock{}, model.Invalid("start_date", "must be YYYY-MM-DD")
		}
		b.StartDate = &d
	}
	if s := strings.TrimSpace(req.EndDate); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return model.RecurringBlock{}, model.Invalid("end_date", "must be YYYY-MM-DD")
		}
		b.EndDate = &d
	}
	return b, nil
}

func blockToDTO(b model.RecurringBlock) recurringBlockDTO {
	dto := recurringBlockDTO{
		ID:          b.ID,
		Name:        b.Name,
		DayOfWeek:   b.DayOfWeek,
		StartMinute: b.StartMinute,
		EndMinute:   b.EndMinute,
		IsActive:    b.IsActive,
		CreatedAt:   formatTimestamp(b.CreatedAt),
		UpdatedAt:   formatTimestamp(b.UpdatedAt),
	}
	if b.StartDate != nil {
		dto.StartDate = b.StartDate.String()
	}
	if b.EndDate != nil {
		dto.EndDate = b.EndDate.String()
	}
	return dto
}

// --- blocked times ---

type blockedTimeDTO struct {
	ID         string `json:"id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type blockedTimeRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (h *RulesHandler) BlockedTimes(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, to, err := instantRange(r)
		if err != nil {
			writeError(w, err)
			return
		}
		list, err := h.svc.ListBlockedTimes(r.Context(), org, from, to)
		if err != nil {
			h.logger.Error("blocked time listing failed", "err", err)
			writeError(w, err)
			return
		}
		out := make([]blockedTimeDTO, 0, len(list))
		for _, bt := range list {
			out = append(out, blockedToDTO(bt))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req blockedTimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, model.Invalid("start_time", "must be RFC 3339"))
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			writeError(w, model.Invalid("end_time", "must be RFC 3339"))
			return
		}
		bt := model.BlockedTime{
			OrganizerID: org,
			Start:       start,
			End:         end,
			Reason:      strings.TrimSpace(req.Reason),
			IsActive:    true,
		}
		if err := h.svc.CreateBlockedTime(r.Context(), &bt); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, blockedToDTO(bt))

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.DeleteBlockedTime(r.Context(), org, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func blockedToDTO(bt model.BlockedTime) blockedTimeDTO {
	return blockedTimeDTO{
		ID:         bt.ID,
		StartTime:  bt.Start.UTC().Format(time.RFC3339),
		EndTime:    bt.End.UTC().Format(time.RFC3339),
		Reason:     bt.Reason,
		Source:     bt.Source,
		ExternalID: bt.ExternalID,
		IsActive:   bt.IsActive,
		CreatedAt:  formatTimestamp(bt.CreatedAt),
	}
}

// --- buffer policy ---

type bufferPolicyDTO struct {
	BufferBeforeMinutes int `json:"buffer_before_minutes"`
	BufferAfterMinutes  int `json:"buffer_after_minutes"`
	MinimumGapMinutes   int `json:"minimum_gap_minutes"`
	SlotIntervalMinutes int `json:"slot_interval_minutes"`
}

func (h *RulesHandler) BufferPolicy(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.svc.GetBufferPolicy(r.Context(), org)
		if err != nil {
			h.logger.Error("buffer policy fetch failed", "err", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, policyToDTO(p))

	case http.MethodPut:
		var req bufferPolicyDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		p := model.BufferPolicy{
			OrganizerID:     org,
			BufferBeforeMin: req.BufferBeforeMinutes,
			BufferAfterMin:  req.BufferAfterMinutes,
			MinimumGapMin:   req.MinimumGapMinutes,
			SlotIntervalMin: req.SlotIntervalMinutes,
		}
		if err := h.svc.UpsertBufferPolicy(r.Context(), p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, policyToDTO(p))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func policyToDTO(p model.BufferPolicy) bufferPolicyDTO {
	return bufferPolicyDTO{
		BufferBeforeMinutes: p.BufferBeforeMin,
		BufferAfterMinutes:  p.BufferAfterMin,
		MinimumGapMinutes:   p.MinimumGapMin,
		SlotIntervalMinutes: p.SlotIntervalMin,
	}
}

// --- conflict preview ---

type checkConflictRequest struct {
	Kind      string          `json:"kind"`
	ExcludeID string          `json:"exclude_id"`
	Rule      json.RawMessage `json:"rule"`
}

type checkConflictResponse struct {
	Conflict    bool   `json:"conflict"`
	RuleKind    string `json:"rule_kind,omitempty"`
	RuleID      string `json:"rule_id,omitempty"`
	StartMinute int    `json:"start_minute,omitempty"`
	EndMinute   int    `json:"end_minute,omitempty"`
}

// CheckConflict dry-runs the authoring validator against a candidate rule.
func (h *RulesHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	org, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req checkConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	var (
		conflict *model.ConflictError
		err      error
	)
	switch req.Kind {
	case "weekly":
		var body weeklyRuleRequest
		if jsonErr := json.Unmarshal(req.Rule, &body); jsonErr != nil {
			http.Error(w, "invalid rule body", http.StatusBadRequest)
			return
		}
		conflict, err = h.svc.CheckWeeklyConflict(r.Context(), weeklyFromRequest(org, body), req.ExcludeID)
	case "override":
		var body overrideRequest
		if jsonErr := json.Unmarshal(req.Rule, &body); jsonErr != nil {
			http.Error(w, "invalid rule body", http.StatusBadRequest)
			return
		}
		date, parseErr := model.ParseDate(body.Date)
		if parseErr != nil {
			writeError(w, model.Invalid("date", "must be YYYY-MM-DD"))
			return
		}
		candidate := model.DateOverride{
			OrganizerID: org,
			Date:        date,
			IsAvailable: body.IsAvailable,
			StartMinute: body.StartMinute,
			EndMinute:   body.EndMinute,
			IsActive:    true,
		}
		conflict, err = h.svc.CheckOverrideConflict(r.Context(), candidate, req.ExcludeID)
	case "recurring_block":
		candidate, decodeErr := decodeBlockCandidate(org, req.Rule)
		if decodeErr != nil {
			writeError(w, decodeErr)
			return
		}
		conflict, err = h.svc.CheckRecurringBlockConflict(r.Context(), candidate, req.ExcludeID)
	default:
		writeError(w, model.Invalid("kind", "must be weekly, override, or recurring_block"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := checkConflictResponse{}
	if conflict != nil {
		resp = checkConflictResponse{
			Conflict:    true,
			RuleKind:    conflict.RuleKind,
			RuleID:      conflict.RuleID,
			StartMinute: conflict.StartMinute,
			EndMinute:   conflict.EndMinute,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBlockCandidate(org string, raw json.RawMessage) (model.RecurringBlock, error) {
	var body recurringBlockRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.RecurringBlock{}, model.Invalid("rule", "invalid json")
	}
	b := model.RecurringBlock{
		OrganizerID: org,
		Name:        strings.TrimSpace(body.Name),
		DayOfWeek:   body.DayOfWeek,
		StartMinute: body.StartMinute,
		EndMinute:   body.EndMinute,
		IsActive:    true,
	}
	if s := strings.TrimSpace(body.StartDate); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return model.RecurringBlock{}, model.Invalid("start_date", "must be YYYY-MM-DD")
		}
		b.StartDate = &d
	}
	if s := strings.TrimSpace(body.EndDate); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return model.RecurringBlock{}, model.Invalid("end_date", "must be YYYY-MM-DD")
		}
		b.EndDate = &d
	}
	return b, nil
}

// --- shared helpers ---

func optionalDateRange(r *http.Request) (*model.Date, *model.Date, error) {
	var from, to *model.Date
	if s := strings.TrimSpace(r.URL.Query().Get("from")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, nil, model.Invalid("from", "must be YYYY-MM-DD")
		}
		from = &d
	}
	if s := strings.TrimSpace(r.URL.Query().Get("to")); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, nil, model.Invalid("to", "must be YYYY-MM-DD")
		}
		to = &d
	}
	return from, to, nil
}

func instantRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.AddDate(0, 0, -1), now.AddDate(0, 0, 30)
	if s := strings.TrimSpace(r.URL.Query().Get("from")); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("from", "must be RFC 3339")
		}
		from = t
	}
	if s := strings.TrimSpace(r.URL.Query().Get("to")); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("to", "must be RFC 3339")
		}
		to = t
	}
	return from, to, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
