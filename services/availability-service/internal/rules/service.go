// Package rules owns the authoring side of the rule store: validation,
// conflict gating, transactional persistence with outbox events, and
// synchronous cache invalidation after every committed write.
package rules

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/timegrid/libs/db"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/cache"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/outbox"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/storage"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/validator"
)

// Service serializes rule writes per organizer so the read-validate-write
// cycle cannot interleave; two overlapping rules can never both pass the
// conflict check.
type Service struct {
	pool   *db.Pool
	repo   *storage.Repository
	events *outbox.Repository
	cache  cache.Cache
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(pool *db.Pool, repo *storage.Repository, events *outbox.Repository, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		pool:   pool,
		repo:   repo,
		events: events,
		cache:  c,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) organizerLock(organizerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[organizerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[organizerID] = l
	}
	return l
}

// --- weekly rules ---

func (s *Service) ListWeeklyRules(ctx context.Context, organizerID string) ([]model.WeeklyRule, error) {
	return s.repo.ListWeeklyRules(ctx, organizerID)
}

func (s *Service) CreateWeeklyRule(ctx context.Context, wr *model.WeeklyRule) error {
	if err := validateWeekly(*wr); err != nil {
		return err
	}
	l := s.organizerLock(wr.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListWeeklyRules(ctx, wr.OrganizerID)
	if err != nil {
		return err
	}
	if wr.IsActive {
		if c := validator.FindWeeklyConflict(*wr, existing, ""); c != nil {
			return weeklyConflict(c)
		}
	}
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.InsertWeeklyRule(ctx, tx, wr); err != nil {
			return err
		}
		return s.emit(ctx, tx, wr.OrganizerID, "weekly_rule", wr.ID, "created", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, wr.OrganizerID, nil)
	return nil
}

func (s *Service) UpdateWeeklyRule(ctx context.Context, wr *model.WeeklyRule) error {
	if err := validateWeekly(*wr); err != nil {
		return err
	}
	l := s.organizerLock(wr.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListWeeklyRules(ctx, wr.OrganizerID)
	if err != nil {
		return err
	}
	if wr.IsActive {
		if c := validator.FindWeeklyConflict(*wr, existing, wr.ID); c != nil {
			return weeklyConflict(c)
		}
	}
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateWeeklyRule(ctx, tx, wr); err != nil {
			return err
		}
		return s.emit(ctx, tx, wr.OrganizerID, "weekly_rule", wr.ID, "updated", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, wr.OrganizerID, nil)
	return nil
}

func (s *Service) DeleteWeeklyRule(ctx context.Context, organizerID, id string) error {
	l := s.organizerLock(organizerID)
	l.Lock()
	defer l.Unlock()

	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.DeleteWeeklyRule(ctx, tx, organizerID, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, organizerID, "weekly_rule", id, "deleted", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, organizerID, nil)
	return nil
}

// --- date overrides ---

func (s *Service) ListDateOverrides(ctx context.Context, organizerID string, from, to *model.Date) ([]model.DateOverride, error) {
	return s.repo.ListDateOverrides(ctx, organizerID, from, to)
}

func (s *Service) CreateDateOverride(ctx context.Context, o *model.DateOverride) error {
	if err := validateOverride(*o); err != nil {
		return err
	}
	l := s.organizerLock(o.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListDateOverrides(ctx, o.OrganizerID, &o.Date, &o.Date)
	if err != nil {
		return err
	}
	if o.IsActive {
		if c := validator.FindOverrideConflict(*o, existing, ""); c != nil {
			return overrideConflict(c)
		}
	}
	r := &model.DateRange{Start: o.Date, End: o.Date}
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.InsertDateOverride(ctx, tx, o); err != nil {
			return err
		}
		return s.emit(ctx, tx, o.OrganizerID, "date_override", o.ID, "created", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, o.OrganizerID, r)
	return nil
}

// UpdateDateOverride may move the override to a different date, so the whole
// organizer cache is dropped rather than tracking both old and new dates.
func (s *Service) UpdateDateOverride(ctx context.Context, o *model.DateOverride) error {
	if err := validateOverride(*o); err != nil {
		return err
	}
	l := s.organizerLock(o.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListDateOverrides(ctx, o.OrganizerID, &o.Date, &o.Date)
	if err != nil {
		return err
	}
	if o.IsActive {
		if c := validator.FindOverrideConflict(*o, existing, o.ID); c != nil {
			return overrideConflict(c)
		}
	}
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateDateOverride(ctx, tx, o); err != nil {
			return err
		}
		return s.emit(ctx, tx, o.OrganizerID, "date_override", o.ID, "updated", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, o.OrganizerID, nil)
	return nil
}

func (s *Service) DeleteDateOverride(ctx context.Context, organizerID, id string) error {
	l := s.organizerLock(organizerID)
	l.Lock()
	defer l.Unlock()

	var r *model.DateRange
	if err := s.write(ctx, func(tx pgx.Tx) error {
		date, err := s.repo.DeleteDateOverride(ctx, tx, organizerID, id)
		if err != nil {
			return err
		}
		r = &model.DateRange{Start: date, End: date}
		return s.emit(ctx, tx, organizerID, "date_override", id, "deleted", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, organizerID, r)
	return nil
}

// --- recurring blocks ---

func (s *Service) ListRecurringBlocks(ctx context.Context, organizerID string) ([]model.RecurringBlock, error) {
	return s.repo.ListRecurringBlocks(ctx, organizerID)
}

func (s *Service) CreateRecurringBlock(ctx context.Context, b *model.RecurringBlock) error {
	if err := validateRecurringBlock(*b); err != nil {
		return err
	}
	l := s.organizerLock(b.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListRecurringBlocks(ctx, b.OrganizerID)
	if err != nil {
		return err
	}
	if b.IsActive {
		if c := validator.FindRecurringBlockConflict(*b, existing, ""); c != nil {
			return blockConflict(c)
		}
	}
	r := blockRange(*b)
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.InsertRecurringBlock(ctx, tx, b); err != nil {
			return err
		}
		return s.emit(ctx, tx, b.OrganizerID, "recurring_block", b.ID, "created", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, b.OrganizerID, r)
	return nil
}

func (s *Service) UpdateRecurringBlock(ctx context.Context, b *model.RecurringBlock) error {
	if err := validateRecurringBlock(*b); err != nil {
		return err
	}
	l := s.organizerLock(b.OrganizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.ListRecurringBlocks(ctx, b.OrganizerID)
	if err != nil {
		return err
	}
	if b.IsActive {
		if c := validator.FindRecurringBlockConflict(*b, existing, b.ID); c != nil {
			return blockConflict(c)
		}
	}
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateRecurringBlock(ctx, tx, b); err != nil {
			return err
		}
		return s.emit(ctx, tx, b.OrganizerID, "recurring_block", b.ID, "updated", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, b.OrganizerID, nil)
	return nil
}

func (s *Service) DeleteRecurringBlock(ctx context.Context, organizerID, id string) error {
	l := s.organizerLock(organizerID)
	l.Lock()
	defer l.Unlock()

	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.DeleteRecurringBlock(ctx, tx, organizerID, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, organizerID, "recurring_block", id, "deleted", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, organizerID, nil)
	return nil
}

// --- blocked times ---

func (s *Service) ListBlockedTimes(ctx context.Context, organizerID string, from, to time.Time) ([]model.BlockedTime, error) {
	return s.repo.ListBlockedTimes(ctx, organizerID, from, to)
}

// CreateBlockedTime accepts manual blocks only; the Source field of the
// input is ignored.
func (s *Service) CreateBlockedTime(ctx context.Context, bt *model.BlockedTime) error {
	bt.Source = model.SourceManual
	if err := validateBlockedTime(*bt); err != nil {
		return err
	}
	l := s.organizerLock(bt.OrganizerID)
	l.Lock()
	defer l.Unlock()

	r := blockedRange(*bt)
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.InsertBlockedTime(ctx, tx, bt); err != nil {
			return err
		}
		return s.emit(ctx, tx, bt.OrganizerID, "blocked_time", bt.ID, "created", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, bt.OrganizerID, r)
	return nil
}

func (s *Service) DeleteBlockedTime(ctx context.Context, organizerID, id string) error {
	l := s.organizerLock(organizerID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.repo.GetBlockedTime(ctx, organizerID, id)
	if err != nil {
		return err
	}
	if existing.Source != model.SourceManual {
		return model.ErrReadOnlySource
	}

	r := blockedRange(existing)
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.DeleteBlockedTime(ctx, tx, organizerID, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, organizerID, "blocked_time", id, "deleted", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, organizerID, r)
	return nil
}

// UpsertExternalBlockedTime is the calendar sync entry point. It bypasses
// the read-only guard and the conflict validator: external busy intervals
// always apply regardless of what they overlap.
func (s *Service) UpsertExternalBlockedTime(ctx context.Context, bt *model.BlockedTime) error {
	if bt.Source == model.SourceManual || bt.ExternalID == "" {
		return model.Invalid("source", "external blocked times need a non-manual source and an external id")
	}
	if err := validateBlockedTime(*bt); err != nil {
		return err
	}
	l := s.organizerLock(bt.OrganizerID)
	l.Lock()
	defer l.Unlock()

	r := blockedRange(*bt)
	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpsertExternalBlockedTime(ctx, tx, bt); err != nil {
			return err
		}
		return s.emit(ctx, tx, bt.OrganizerID, "blocked_time", bt.ID, "synced", r)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, bt.OrganizerID, r)
	return nil
}

// --- buffer policy ---

func (s *Service) GetBufferPolicy(ctx context.Context, organizerID string) (model.BufferPolicy, error) {
	return s.repo.GetBufferPolicy(ctx, organizerID)
}

func (s *Service) UpsertBufferPolicy(ctx context.Context, p model.BufferPolicy) error {
	if err := validateBufferPolicy(p); err != nil {
		return err
	}
	l := s.organizerLock(p.OrganizerID)
	l.Lock()
	defer l.Unlock()

	if err := s.write(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpsertBufferPolicy(ctx, tx, p); err != nil {
			return err
		}
		return s.emit(ctx, tx, p.OrganizerID, "buffer_policy", p.OrganizerID, "updated", nil)
	}); err != nil {
		return err
	}
	s.invalidate(ctx, p.OrganizerID, nil)
	return nil
}

// --- conflict preview ---

// CheckWeeklyConflict runs the authoring validator without persisting
// anything; forms call it to gate their submit buttons.
func (s *Service) CheckWeeklyConflict(ctx context.Context, candidate model.WeeklyRule, excludeID string) (*model.ConflictError, error) {
	if err := validateWeekly(candidate); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListWeeklyRules(ctx, candidate.OrganizerID)
	if err != nil {
		return nil, err
	}
	if c := validator.FindWeeklyConflict(candidate, existing, excludeID); c != nil {
		return weeklyConflict(c), nil
	}
	return nil, nil
}

func (s *Service) CheckOverrideConflict(ctx context.Context, candidate model.DateOverride, excludeID string) (*model.ConflictError, error) {
	if err := validateOverride(candidate); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListDateOverrides(ctx, candidate.OrganizerID, &candidate.Date, &candidate.Date)
	if err != nil {
		return nil, err
	}
	if c := validator.FindOverrideConflict(candidate, existing, excludeID); c != nil {
		return overrideConflict(c), nil
	}
	return nil, nil
}

func (s *Service) CheckRecurringBlockConflict(ctx context.Context, candidate model.RecurringBlock, excludeID string) (*model.ConflictError, error) {
	if err := validateRecurringBlock(candidate); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListRecurringBlocks(ctx, candidate.OrganizerID)
	if err != nil {
		return nil, err
	}
	if c := validator.FindRecurringBlockConflict(candidate, existing, excludeID); c != nil {
		return blockConflict(c), nil
	}
	return nil, nil
}

// --- internals ---

func (s *Service) write(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, organizerID, kind, id, action string, r *model.DateRange) error {
	payload := outbox.RulesChangedPayload{
		OrganizerID: organizerID,
		RuleKind:    kind,
		RuleID:      id,
		Action:      action,
	}
	if r != nil {
		payload.FromDate = r.Start.String()
		payload.ToDate = r.End.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "availability_rules",
		AggregateID:   organizerID,
		EventType:     outbox.RulesChangedEventType,
		Payload:       body,
	})
}

// invalidate drops intersecting cache entries after commit. A failure here
// leaves stale entries until TTL expiry, which is logged but not surfaced:
// the rule write itself already succeeded.
func (s *Service) invalidate(ctx context.Context, organizerID string, r *model.DateRange) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, organizerID, r); err != nil {
		s.logger.Warn("cache invalidation failed", "organizer_id", organizerID, "err", err)
	}
}

func blockRange(b model.RecurringBlock) *model.DateRange {
	if b.StartDate == nil || b.EndDate == nil {
		return nil
	}
	return &model.DateRange{Start: *b.StartDate, End: *b.EndDate}
}

// blockedRange widens the affected dates by a day on both sides; the
// instant-to-local-date mapping depends on a timezone this layer never sees.
func blockedRange(bt model.BlockedTime) *model.DateRange {
	return &model.DateRange{
		Start: model.DateOf(bt.Start.UTC().AddDate(0, 0, -1)),
		End:   model.DateOf(bt.End.UTC().AddDate(0, 0, 1)),
	}
}

func weeklyConflict(r *model.WeeklyRule) *model.ConflictError {
	return &model.ConflictError{RuleKind: "weekly", RuleID: r.ID, StartMinute: r.StartMinute, EndMinute: r.EndMinute}
}

func overrideConflict(o *model.DateOverride) *model.ConflictError {
	start, end := o.Window()
	if !o.IsAvailable {
		start, end = 0, model.MinutesPerDay
	}
	return &model.ConflictError{RuleKind: "override", RuleID: o.ID, StartMinute: start, EndMinute: end}
}

func blockConflict(b *model.RecurringBlock) *model.ConflictError {
	return &model.ConflictError{RuleKind: "recurring_block", RuleID: b.ID, StartMinute: b.StartMinute, EndMinute: b.EndMinute}
}
