package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// ThrottleRepo persists per-connector ThrottleState rows.
type ThrottleRepo struct{ Pool PgxPool }

// NewThrottleRepo constructs a ThrottleRepo with the given pool.
func NewThrottleRepo(p PgxPool) *ThrottleRepo { return &ThrottleRepo{Pool: p} }

func (r *ThrottleRepo) span(ctx domain.Context, op, sqlOp string) (domain.Context, func()) {
	tracer := otel.Tracer("repo.throttle")
	ctx, span := tracer.Start(ctx, "throttle."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlOp),
		attribute.String("db.sql.table", "throttle_state"),
	)
	return ctx, func() { span.End() }
}

// GetOrCreate returns the ThrottleState for connectorID, inserting a
// zero-value row if absent.
func (r *ThrottleRepo) GetOrCreate(ctx domain.Context, connectorID int64) (domain.ThrottleState, error) {
	ctx, end := r.span(ctx, "GetOrCreate", "INSERT")
	defer end()

	const q = `
		INSERT INTO throttle_state (connector_id, requests_this_minute, requests_today)
		VALUES ($1, 0, 0)
		ON CONFLICT (connector_id) DO UPDATE SET connector_id = throttle_state.connector_id
		RETURNING connector_id, requests_this_minute, requests_today, minute_window_start,
		          day_window_start, paused_until, pause_reason, last_request_at
	`
	state, err := scanThrottleState(r.Pool.QueryRow(ctx, q, connectorID))
	if err != nil {
		return domain.ThrottleState{}, fmt.Errorf("op=throttle.getOrCreate: %w", err)
	}
	return state, nil
}

// TryAcquireMinuteSlot atomically resets an expired minute window or
// increments the counter if capacity remains.
func (r *ThrottleRepo) TryAcquireMinuteSlot(ctx domain.Context, connectorID int64, requestsPerMinute int, now time.Time) (bool, bool, error) {
	ctx, end := r.span(ctx, "TryAcquireMinuteSlot", "UPDATE")
	defer end()

	const resetQ = `
		UPDATE throttle_state
		SET requests_this_minute = 1, minute_window_start = $2
		WHERE connector_id = $1
		  AND (minute_window_start IS NULL OR minute_window_start <= $3)
		RETURNING true
	`
	windowCutoff := now.Add(-time.Minute)
	var resetOK bool
	err := r.Pool.QueryRow(ctx, resetQ, connectorID, now, windowCutoff).Scan(&resetOK)
	switch {
	case err == nil:
		return true, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// window not expired, fall through to capacity check
	default:
		return false, false, fmt.Errorf("op=throttle.acquireMinuteSlot.reset: %w", err)
	}

	const acquireQ = `
		UPDATE throttle_state
		SET requests_this_minute = requests_this_minute + 1
		WHERE connector_id = $1 AND requests_this_minute < $2
		RETURNING true
	`
	var acquired bool
	err = r.Pool.QueryRow(ctx, acquireQ, connectorID, requestsPerMinute).Scan(&acquired)
	switch {
	case err == nil:
		return true, false, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, false, nil
	default:
		return false, false, fmt.Errorf("op=throttle.acquireMinuteSlot.acquire: %w", err)
	}
}

// ResetDayWindowIfExpired atomically resets the day window if expired,
// returning the up-to-date state either way.
func (r *ThrottleRepo) ResetDayWindowIfExpired(ctx domain.Context, connectorID int64, now time.Time) (domain.ThrottleState, error) {
	ctx, end := r.span(ctx, "ResetDayWindowIfExpired", "UPDATE")
	defer end()

	const q = `
		UPDATE throttle_state
		SET requests_today = CASE
		        WHEN day_window_start IS NULL OR day_window_start < $2 THEN 0
		        ELSE requests_today
		    END,
		    day_window_start = CASE
		        WHEN day_window_start IS NULL OR day_window_start < $2 THEN $3
		        ELSE day_window_start
		    END
		WHERE connector_id = $1
		RETURNING connector_id, requests_this_minute, requests_today, minute_window_start,
		          day_window_start, paused_until, pause_reason, last_request_at
	`
	dayCutoff := now.Truncate(24 * time.Hour)
	state, err := scanThrottleState(r.Pool.QueryRow(ctx, q, connectorID, dayCutoff, dayCutoff))
	if err != nil {
		return domain.ThrottleState{}, fmt.Errorf("op=throttle.resetDayWindow: %w", err)
	}
	return state, nil
}

// RecordRequest bumps RequestsToday and LastRequestAt.
func (r *ThrottleRepo) RecordRequest(ctx domain.Context, connectorID int64, now time.Time) error {
	ctx, end := r.span(ctx, "RecordRequest", "UPDATE")
	defer end()

	const q = `
		UPDATE throttle_state
		SET requests_today = requests_today + 1, last_request_at = $2
		WHERE connector_id = $1
	`
	if _, err := r.Pool.Exec(ctx, q, connectorID, now); err != nil {
		return fmt.Errorf("op=throttle.recordRequest: %w", err)
	}
	return nil
}

// SetPause sets PausedUntil/PauseReason for connectorID.
func (r *ThrottleRepo) SetPause(ctx domain.Context, connectorID int64, until time.Time, reason domain.PauseReason) error {
	ctx, end := r.span(ctx, "SetPause", "UPDATE")
	defer end()

	const q = `UPDATE throttle_state SET paused_until = $2, pause_reason = $3 WHERE connector_id = $1`
	if _, err := r.Pool.Exec(ctx, q, connectorID, until, reason); err != nil {
		return fmt.Errorf("op=throttle.setPause: %w", err)
	}
	return nil
}

// ClearPause clears PausedUntil/PauseReason.
func (r *ThrottleRepo) ClearPause(ctx domain.Context, connectorID int64) error {
	ctx, end := r.span(ctx, "ClearPause", "UPDATE")
	defer end()

	const q = `UPDATE throttle_state SET paused_until = NULL, pause_reason = NULL WHERE connector_id = $1`
	if _, err := r.Pool.Exec(ctx, q, connectorID); err != nil {
		return fmt.Errorf("op=throttle.clearPause: %w", err)
	}
	return nil
}

// ResetExpiredWindows bulk-resets expired minute/day windows and clears
// expired pauses, returning counts of each category reset.
func (r *ThrottleRepo) ResetExpiredWindows(ctx domain.Context, now time.Time) (int, int, int, error) {
	ctx, end := r.span(ctx, "ResetExpiredWindows", "UPDATE")
	defer end()

	const minuteQ = `
		UPDATE throttle_state
		SET requests_this_minute = 0, minute_window_start = $1
		WHERE minute_window_start IS NOT NULL AND minute_window_start <= $2
	`
	minuteTag, err := r.Pool.Exec(ctx, minuteQ, now, now.Add(-time.Minute))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=throttle.resetExpiredWindows.minute: %w", err)
	}

	const dayQ = `
		UPDATE throttle_state
		SET requests_today = 0, day_window_start = $1
		WHERE day_window_start IS NOT NULL AND day_window_start < $2
	`
	dayTag, err := r.Pool.Exec(ctx, dayQ, now.Truncate(24*time.Hour), now.Truncate(24*time.Hour))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=throttle.resetExpiredWindows.day: %w", err)
	}

	const pauseQ = `
		UPDATE throttle_state
		SET paused_until = NULL, pause_reason = NULL
		WHERE paused_until IS NOT NULL AND paused_until <= $1
	`
	pauseTag, err := r.Pool.Exec(ctx, pauseQ, now)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=throttle.resetExpiredWindows.pause: %w", err)
	}

	return int(minuteTag.RowsAffected()), int(dayTag.RowsAffected()), int(pauseTag.RowsAffected()), nil
}

// GetProfile resolves the effective profile for a connector: the
// connector's explicit profile, else the store default, else nil.
func (r *ThrottleRepo) GetProfile(ctx domain.Context, connectorID int64) (*domain.ThrottleProfile, error) {
	ctx, end := r.span(ctx, "GetProfile", "SELECT")
	defer end()

	const connQ = `SELECT throttle_profile_id FROM connectors WHERE id = $1`
	var profileID *int64
	err := r.Pool.QueryRow(ctx, connQ, connectorID).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("op=throttle.getProfile: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("op=throttle.getProfile: %w", err)
	}
	if profileID == nil {
		return r.getDefaultProfile(ctx)
	}

	const profileQ = `
		SELECT id, name, requests_per_minute, daily_budget, batch_size,
		       batch_cooldown_seconds, rate_limit_pause_seconds, is_default
		FROM throttle_profiles WHERE id = $1
	`
	var profile domain.ThrottleProfile
	err = r.Pool.QueryRow(ctx, profileQ, *profileID).Scan(&profile.ID, &profile.Name,
		&profile.RequestsPerMinute, &profile.DailyBudget, &profile.BatchSize,
		&profile.BatchCooldownSeconds, &profile.RateLimitPauseSeconds, &profile.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		// The referenced profile row was deleted out from under the
		// connector; fall back the same way an unset reference does.
		return r.getDefaultProfile(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("op=throttle.getProfile.profile: %w", err)
	}
	return &profile, nil
}

func (r *ThrottleRepo) getDefaultProfile(ctx domain.Context) (*domain.ThrottleProfile, error) {
	const q = `
		SELECT id, name, requests_per_minute, daily_budget, batch_size,
		       batch_cooldown_seconds, rate_limit_pause_seconds, is_default
		FROM throttle_profiles WHERE is_default = true LIMIT 1
	`
	var profile domain.ThrottleProfile
	err := r.Pool.QueryRow(ctx, q).Scan(&profile.ID, &profile.Name, &profile.RequestsPerMinute,
		&profile.DailyBudget, &profile.BatchSize, &profile.BatchCooldownSeconds,
		&profile.RateLimitPauseSeconds, &profile.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("op=throttle.getDefaultProfile: %w", err)
	}
	return &profile, nil
}

// SeedProfiles inserts the given throttle profiles, skipping any name that
// already exists so an operator's tuned rows survive restarts.
func (r *ThrottleRepo) SeedProfiles(ctx domain.Context, profiles []domain.ThrottleProfile) (int, error) {
	ctx, end := r.span(ctx, "SeedProfiles", "INSERT")
	defer end()

	const q = `
		INSERT INTO throttle_profiles (name, requests_per_minute, daily_budget, batch_size,
			batch_cooldown_seconds, rate_limit_pause_seconds, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO NOTHING
	`
	inserted := 0
	for _, p := range profiles {
		tag, err := r.Pool.Exec(ctx, q, p.Name, p.RequestsPerMinute, p.DailyBudget, p.BatchSize,
			p.BatchCooldownSeconds, p.RateLimitPauseSeconds, p.IsDefault)
		if err != nil {
			return inserted, fmt.Errorf("op=throttle.seedProfiles: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func scanThrottleState(row pgx.Row) (domain.ThrottleState, error) {
	var s domain.ThrottleState
	err := row.Scan(&s.ConnectorID, &s.RequestsThisMinute, &s.RequestsToday, &s.MinuteWindowStart,
		&s.DayWindowStart, &s.PausedUntil, &s.PauseReason, &s.LastRequestAt)
	return s, err
}
