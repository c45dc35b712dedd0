package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/timegrid/libs/db"
	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Repository persists the five rule-store views. Mutations run inside a
// caller-owned transaction so rule writes and their outbox events commit
// atomically; reads go straight to the pool.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// --- weekly rules ---

func (r *Repository) ListWeeklyRules(ctx context.Context, organizerID string) ([]model.WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, day_of_week, start_minute, end_minute,
			COALESCE(event_type_ids, '{}'), is_active, created_at, updated_at
		FROM weekly_rules
		WHERE organizer_id = $1
		ORDER BY day_of_week, start_minute, created_at
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyRule
	for rows.Next() {
		var wr model.WeeklyRule
		if err := rows.Scan(&wr.ID, &wr.OrganizerID, &wr.DayOfWeek, &wr.StartMinute, &wr.EndMinute,
			&wr.EventTypeIDs, &wr.IsActive, &wr.CreatedAt, &wr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, wr)
	}
	return out, rows.Err()
}

func (r *Repository) InsertWeeklyRule(ctx context.Context, tx pgx.Tx, wr *model.WeeklyRule) error {
	wr.ID = uuid.NewString()
	return tx.QueryRow(ctx, `
		INSERT INTO weekly_rules (id, organizer_id, day_of_week, start_minute, end_minute, event_type_ids, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, wr.ID, wr.OrganizerID, wr.DayOfWeek, wr.StartMinute, wr.EndMinute, wr.EventTypeIDs, wr.IsActive).
		Scan(&wr.CreatedAt, &wr.UpdatedAt)
}

func (r *Repository) UpdateWeeklyRule(ctx context.Context, tx pgx.Tx, wr *model.WeeklyRule) error {
	tag, err := tx.Exec(ctx, `
		UPDATE weekly_rules
		SET day_of_week = $3, start_minute = $4, end_minute = $5, event_type_ids = $6,
			is_active = $7, updated_at = now()
		WHERE id = $1 AND organizer_id = $2
	`, wr.ID, wr.OrganizerID, wr.DayOfWeek, wr.StartMinute, wr.EndMinute, wr.EventTypeIDs, wr.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteWeeklyRule(ctx context.Context, tx pgx.Tx, organizerID, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM weekly_rules WHERE id = $1 AND organizer_id = $2`, id, organizerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- date overrides ---

func (r *Repository) ListDateOverrides(ctx context.Context, organizerID string, from, to *model.Date) ([]model.DateOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, date, is_available, start_minute, end_minute,
			COALESCE(event_type_ids, '{}'), COALESCE(reason, ''), is_active, created_at, updated_at
		FROM date_overrides
		WHERE organizer_id = $1
			AND ($2::date IS NULL OR date >= $2)
			AND ($3::date IS NULL OR date <= $3)
		ORDER BY date, created_at
	`, organizerID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DateOverride
	for rows.Next() {
		var o model.DateOverride
		var date time.Time
		if err := rows.Scan(&o.ID, &o.OrganizerID, &date, &o.IsAvailable, &o.StartMinute, &o.EndMinute,
			&o.EventTypeIDs, &o.Reason, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Date = model.DateOf(date)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) InsertDateOverride(ctx context.Context, tx pgx.Tx, o *model.DateOverride) error {
	o.ID = uuid.NewString()
	return tx.QueryRow(ctx, `
		INSERT INTO date_overrides
			(id, organizer_id, date, is_available, start_minute, end_minute, event_type_ids, reason, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.OrganizerID, o.Date.String(), o.IsAvailable, o.StartMinute, o.EndMinute,
		o.EventTypeIDs, o.Reason, o.IsActive).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *Repository) UpdateDateOverride(ctx context.Context, tx pgx.Tx, o *model.DateOverride) error {
	tag, err := tx.Exec(ctx, `
		UPDATE date_overrides
		SET date = $3, is_available = $4, start_minute = $5, end_minute = $6,
			event_type_ids = $7, reason = $8, is_active = $9, updated_at = now()
		WHERE id = $1 AND organizer_id = $2
	`, o.ID, o.OrganizerID, o.Date.String(), o.IsAvailable, o.StartMinute, o.EndMinute,
		o.EventTypeIDs, o.Reason, o.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteDateOverride(ctx context.Context, tx pgx.Tx, organizerID, id string) (model.Date, error) {
	var date time.Time
	err := tx.QueryRow(ctx, `
		DELETE FROM date_overrides WHERE id = $1 AND organizer_id = $2 RETURNING date
	`, id, organizerID).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Date{}, model.ErrNotFound
	}
	if err != nil {
		return model.Date{}, err
	}
	return model.DateOf(date), nil
}

// --- recurring blocks ---

func (r *Repository) ListRecurringBlocks(ctx context.Context, organizerID string) ([]model.RecurringBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, name, day_of_week, start_minute, end_minute,
			start_date, end_date, is_active, created_at, updated_at
		FROM recurring_blocks
		WHERE organizer_id = $1
		ORDER BY day_of_week, start_minute, created_at
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecurringBlock
	for rows.Next() {
		var b model.RecurringBlock
		var startDate, endDate *time.Time
		if err := rows.Scan(&b.ID, &b.OrganizerID, &b.Name, &b.DayOfWeek, &b.StartMinute, &b.EndMinute,
			&startDate, &endDate, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.StartDate = datePtr(startDate)
		b.EndDate = datePtr(endDate)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) InsertRecurringBlock(ctx context.Context, tx pgx.Tx, b *model.RecurringBlock) error {
	b.ID = uuid.NewString()
	return tx.QueryRow(ctx, `
		INSERT INTO recurring_blocks
			(id, organizer_id, name, day_of_week, start_minute, end_minute, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, b.ID, b.OrganizerID, b.Name, b.DayOfWeek, b.StartMinute, b.EndMinute,
		dateArg(b.StartDate), dateArg(b.EndDate), b.IsActive).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *Repository) UpdateRecurringBlock(ctx context.Context, tx pgx.Tx, b *model.RecurringBlock) error {
	tag, err := tx.Exec(ctx, `
		UPDATE recurring_blocks
		SET name = $3, day_of_week = $4, start_minute = $5, end_minute = $6,
			start_date = $7, end_date = $8, is_active = $9, updated_at = now()
		WHERE id = $1 AND organizer_id = $2
	`, b.ID, b.OrganizerID, b.Name, b.DayOfWeek, b.StartMinute, b.EndMinute,
		dateArg(b.StartDate), dateArg(b.EndDate), b.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteRecurringBlock(ctx context.Context, tx pgx.Tx, organizerID, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM recurring_blocks WHERE id = $1 AND organizer_id = $2`, id, organizerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- blocked times ---

func (r *Repository) ListBlockedTimes(ctx context.Context, organizerID string, from, to time.Time) ([]model.BlockedTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, organizer_id::text, start_time, end_time,
			COALESCE(reason, ''), source, COALESCE(external_id, ''), is_active, created_at, updated_at
		FROM blocked_times
		WHERE organizer_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, organizerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockedTime
	for rows.Next() {
		var bt model.BlockedTime
		if err := rows.Scan(&bt.ID, &bt.OrganizerID, &bt.Start, &bt.End,
			&bt.Reason, &bt.Source, &bt.ExternalID, &bt.IsActive, &bt.CreatedAt, &bt.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

func (r *Repository) GetBlockedTime(ctx context.Context, organizerID, id string) (model.BlockedTime, error) {
	var bt model.BlockedTime
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, organizer_id::text, start_time, end_time,
			COALESCE(reason, ''), source, COALESCE(external_id, ''), is_active, created_at, updated_at
		FROM blocked_times
		WHERE id = $1 AND organizer_id = $2
	`, id, organizerID).Scan(&bt.ID, &bt.OrganizerID, &bt.Start, &bt.End,
		&bt.Reason, &bt.Source, &bt.ExternalID, &bt.IsActive, &bt.CreatedAt, &bt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BlockedTime{}, model.ErrNotFound
	}
	return bt, err
}

func (r *Repository) InsertBlockedTime(ctx context.Context, tx pgx.Tx, bt *model.BlockedTime) error {
	bt.ID = uuid.NewString()
	return tx.QueryRow(ctx, `
		INSERT INTO blocked_times
			(id, organizer_id, start_time, end_time, reason, source, external_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, bt.ID, bt.OrganizerID, bt.Start, bt.End, bt.Reason, bt.Source, bt.ExternalID, bt.IsActive).
		Scan(&bt.CreatedAt, &bt.UpdatedAt)
}

func (r *Repository) DeleteBlockedTime(ctx context.Context, tx pgx.Tx, organizerID, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM blocked_times WHERE id = $1 AND organizer_id = $2`, id, organizerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpsertExternalBlockedTime reconciles one row from the calendar sync feed,
// keyed by (organizer, source, external id).
func (r *Repository) UpsertExternalBlockedTime(ctx context.Context, tx pgx.Tx, bt *model.BlockedTime) error {
	return tx.QueryRow(ctx, `
		INSERT INTO blocked_times
			(id, organizer_id, start_time, end_time, reason, source, external_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (organizer_id, source, external_id) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			reason = EXCLUDED.reason,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id::text
	`, uuid.NewString(), bt.OrganizerID, bt.Start, bt.End, bt.Reason, bt.Source, bt.ExternalID, bt.IsActive).
		Scan(&bt.ID)
}

// --- buffer policy ---

func (r *Repository) GetBufferPolicy(ctx context.Context, organizerID string) (model.BufferPolicy, error) {
	var p model.BufferPolicy
	err := r.pool.QueryRow(ctx, `
		SELECT organizer_id::text, buffer_before_minutes, buffer_after_minutes, minimum_gap_minutes, slot_interval_minutes
		FROM buffer_policies
		WHERE organizer_id = $1
	`, organizerID).Scan(&p.OrganizerID, &p.BufferBeforeMin, &p.BufferAfterMin, &p.MinimumGapMin, &p.SlotIntervalMin)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultBufferPolicy(organizerID), nil
	}
	return p, err
}

func (r *Repository) UpsertBufferPolicy(ctx context.Context, tx pgx.Tx, p model.BufferPolicy) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO buffer_policies
			(organizer_id, buffer_before_minutes, buffer_after_minutes, minimum_gap_minutes, slot_interval_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organizer_id) DO UPDATE
		SET buffer_before_minutes = EXCLUDED.buffer_before_minutes,
			buffer_after_minutes = EXCLUDED.buffer_after_minutes,
			minimum_gap_minutes = EXCLUDED.minimum_gap_minutes,
			slot_interval_minutes = EXCLUDED.slot_interval_minutes,
			updated_at = now()
	`, p.OrganizerID, p.BufferBeforeMin, p.BufferAfterMin, p.MinimumGapMin, p.SlotIntervalMin)
	return err
}

// --- resolver view ---

// RuleSet assembles the full rule state for a date range. Blocked times are
// fetched with a two-day margin on both sides so midnight-spanning windows
// and zone offsets cannot push a relevant block outside the query.
func (r *Repository) RuleSet(ctx context.Context, organizerID string, from, to model.Date) (model.RuleSet, error) {
	var rs model.RuleSet
	var err error

	if rs.Weekly, err = r.ListWeeklyRules(ctx, organizerID); err != nil {
		return model.RuleSet{}, err
	}
	if rs.Overrides, err = r.ListDateOverrides(ctx, organizerID, &from, &to); err != nil {
		return model.RuleSet{}, err
	}
	if rs.RecurringBlocks, err = r.ListRecurringBlocks(ctx, organizerID); err != nil {
		return model.RuleSet{}, err
	}

	margin := 48 * time.Hour
	fromInstant := time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, time.UTC).Add(-margin)
	toInstant := time.Date(to.Year, to.Month, to.Day, 0, 0, 0, 0, time.UTC).Add(24*time.Hour + margin)
	if rs.BlockedTimes, err = r.ListBlockedTimes(ctx, organizerID, fromInstant, toInstant); err != nil {
		return model.RuleSet{}, err
	}

	if rs.Buffers, err = r.GetBufferPolicy(ctx, organizerID); err != nil {
		return model.RuleSet{}, err
	}
	return rs, nil
}

// ActiveOrganizerIDs lists organizers with at least one active weekly rule;
// the precompute warmer iterates over these.
func (r *Repository) ActiveOrganizerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT organizer_id::text FROM weekly_rules WHERE is_active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func dateArg(d *model.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func datePtr(t *time.Time) *model.Date {
	if t == nil {
		return nil
	}
	d := model.DateOf(*t)
	return &d
}
