// Package throttle implements the per-connector dispatch
// gate with per-minute and daily budgets, pause states, and a Redis
// pre-check layer in front of the authoritative Postgres accounting.
package throttle

import (
	"fmt"
	"strconv"
	"time"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
	"comradarr/pkg/clock"
)

// DenyReason is the closed set of reasons canDispatch may deny a slot.
type DenyReason string

// Deny reasons.
const (
	ReasonNone               DenyReason = ""
	ReasonRateLimit          DenyReason = "rate_limit"
	ReasonDailyExhausted     DenyReason = "daily_budget_exhausted"
	ReasonManual             DenyReason = "manual"
)

// Decision is the result of a canDispatch evaluation.
type Decision struct {
	Allowed      bool
	Reason       DenyReason
	RetryAfterMs int64
	SlotAcquired bool
}

// Status is an operator-visible snapshot of a connector's throttle state.
type Status struct {
	Profile               domain.ThrottleProfile
	RemainingThisMinute   int
	RemainingToday        *int
	Paused                bool
	PausedUntil           *time.Time
	PauseReason           *domain.PauseReason
}

// Enforcer gates outgoing upstream calls per connector. All
// authoritative state lives in repo; precheck is an optional fast-fail
// layer that never becomes the source of truth.
type Enforcer struct {
	repo     domain.ThrottleRepository
	precheck *RedisPrecheck
	now      func() time.Time
}

// NewEnforcer constructs an Enforcer. precheck may be nil.
func NewEnforcer(repo domain.ThrottleRepository, precheck *RedisPrecheck) *Enforcer {
	return &Enforcer{repo: repo, precheck: precheck, now: time.Now}
}

// WithClock overrides the enforcer's now function, for tests.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// CanDispatch evaluates the denial order: pause, daily
// budget, then atomic per-minute slot acquisition.
func (e *Enforcer) CanDispatch(ctx domain.Context, connectorID int64) (Decision, error) {
	now := e.now()
	label := strconv.FormatInt(connectorID, 10)

	if e.precheck != nil {
		if allowed, retryAfter := e.precheck.Allow(ctx, connectorID); !allowed {
			observability.RecordThrottleDecision(label, string(ReasonRateLimit))
			return Decision{Allowed: false, Reason: ReasonRateLimit, RetryAfterMs: retryAfter.Milliseconds()}, nil
		}
	}

	profile, err := ResolveProfile(ctx, e.repo, connectorID)
	if err != nil {
		return Decision{}, fmt.Errorf("op=throttle.canDispatch.resolveProfile: %w", err)
	}

	state, err := e.repo.GetOrCreate(ctx, connectorID)
	if err != nil {
		return Decision{}, fmt.Errorf("op=throttle.canDispatch.getOrCreate: %w", err)
	}

	if state.PausedUntil != nil && state.PausedUntil.After(now) {
		reason := ReasonManual
		if state.PauseReason != nil {
			reason = DenyReason(*state.PauseReason)
		}
		observability.RecordThrottleDecision(label, string(reason))
		return Decision{
			Allowed:      false,
			Reason:       reason,
			RetryAfterMs: state.PausedUntil.Sub(now).Milliseconds(),
		}, nil
	}

	state, err = e.repo.ResetDayWindowIfExpired(ctx, connectorID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("op=throttle.canDispatch.resetDayWindow: %w", err)
	}

	if profile.DailyBudget != nil && state.RequestsToday >= *profile.DailyBudget {
		pausedUntil := clock.StartOfNextDayUTC(now)
		reason := domain.PauseReasonDailyExhausted
		if err := e.repo.SetPause(ctx, connectorID, pausedUntil, reason); err != nil {
			return Decision{}, fmt.Errorf("op=throttle.canDispatch.setPause: %w", err)
		}
		observability.RecordThrottleDecision(label, string(ReasonDailyExhausted))
		return Decision{
			Allowed:      false,
			Reason:       ReasonDailyExhausted,
			RetryAfterMs: clock.MsUntilMidnightUTC(now),
		}, nil
	}

	acquired, _, err := e.repo.TryAcquireMinuteSlot(ctx, connectorID, profile.RequestsPerMinute, now)
	if err != nil {
		return Decision{}, fmt.Errorf("op=throttle.canDispatch.tryAcquireSlot: %w", err)
	}
	if !acquired {
		retryAfter := clock.MsUntilMinuteWindowExpires(state.MinuteWindowStart, now)
		if retryAfter < 1000 {
			retryAfter = 1000
		}
		observability.RecordThrottleDecision(label, string(ReasonRateLimit))
		return Decision{Allowed: false, Reason: ReasonRateLimit, RetryAfterMs: retryAfter}, nil
	}

	observability.RecordSlotAcquired(label)
	return Decision{Allowed: true, SlotAcquired: true}, nil
}

// RecordRequest bumps the daily counter and last-request timestamp. The
// per-minute counter is already bumped by the atomic slot acquisition.
func (e *Enforcer) RecordRequest(ctx domain.Context, connectorID int64) error {
	if err := e.repo.RecordRequest(ctx, connectorID, e.now()); err != nil {
		return fmt.Errorf("op=throttle.recordRequest: %w", err)
	}
	return nil
}

// HandleRateLimitResponse pauses the connector for retryAfterSeconds, or
// the profile's rateLimitPauseSeconds if retryAfterSeconds is absent or
// non-positive. It returns the resulting
// pausedUntil so callers (e.g. the dispatcher) can thread it into
// registry.nextEligible when handling a rate_limited outcome.
func (e *Enforcer) HandleRateLimitResponse(ctx domain.Context, connectorID int64, retryAfterSeconds *int) (time.Time, error) {
	profile, err := ResolveProfile(ctx, e.repo, connectorID)
	if err != nil {
		return time.Time{}, fmt.Errorf("op=throttle.handleRateLimitResponse.resolveProfile: %w", err)
	}

	seconds := profile.RateLimitPauseSeconds
	if retryAfterSeconds != nil && *retryAfterSeconds > 0 {
		seconds = *retryAfterSeconds
	}

	pausedUntil := e.now().Add(time.Duration(seconds) * time.Second)
	if err := e.repo.SetPause(ctx, connectorID, pausedUntil, domain.PauseReasonRateLimit); err != nil {
		return time.Time{}, fmt.Errorf("op=throttle.handleRateLimitResponse.setPause: %w", err)
	}
	return pausedUntil, nil
}

// GetAvailableCapacity returns -1 if paused, the full per-minute budget if
// the minute window has expired, else the remaining slots this minute.
func (e *Enforcer) GetAvailableCapacity(ctx domain.Context, connectorID int64) (int, error) {
	now := e.now()

	profile, err := ResolveProfile(ctx, e.repo, connectorID)
	if err != nil {
		return 0, fmt.Errorf("op=throttle.getAvailableCapacity.resolveProfile: %w", err)
	}
	state, err := e.repo.GetOrCreate(ctx, connectorID)
	if err != nil {
		return 0, fmt.Errorf("op=throttle.getAvailableCapacity.getOrCreate: %w", err)
	}

	if state.PausedUntil != nil && state.PausedUntil.After(now) {
		return -1, nil
	}
	if clock.IsMinuteWindowExpired(state.MinuteWindowStart, now) {
		return profile.RequestsPerMinute, nil
	}
	remaining := profile.RequestsPerMinute - state.RequestsThisMinute
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// GetStatus returns an operator-visible snapshot of the connector's
// current throttle state.
func (e *Enforcer) GetStatus(ctx domain.Context, connectorID int64) (Status, error) {
	now := e.now()

	profile, err := ResolveProfile(ctx, e.repo, connectorID)
	if err != nil {
		return Status{}, fmt.Errorf("op=throttle.getStatus.resolveProfile: %w", err)
	}
	state, err := e.repo.GetOrCreate(ctx, connectorID)
	if err != nil {
		return Status{}, fmt.Errorf("op=throttle.getStatus.getOrCreate: %w", err)
	}

	remainingThisMinute := profile.RequestsPerMinute
	if !clock.IsMinuteWindowExpired(state.MinuteWindowStart, now) {
		remainingThisMinute = profile.RequestsPerMinute - state.RequestsThisMinute
		if remainingThisMinute < 0 {
			remainingThisMinute = 0
		}
	}

	var remainingToday *int
	if profile.DailyBudget != nil {
		today := state.RequestsToday
		if clock.IsDayWindowExpired(state.DayWindowStart, now) {
			today = 0
		}
		r := *profile.DailyBudget - today
		if r < 0 {
			r = 0
		}
		remainingToday = &r
	}

	paused := state.PausedUntil != nil && state.PausedUntil.After(now)

	return Status{
		Profile:             profile,
		RemainingThisMinute: remainingThisMinute,
		RemainingToday:      remainingToday,
		Paused:              paused,
		PausedUntil:         state.PausedUntil,
		PauseReason:         state.PauseReason,
	}, nil
}

// PauseDispatch sets an operator-initiated pause for seconds.
func (e *Enforcer) PauseDispatch(ctx domain.Context, connectorID int64, seconds int) error {
	until := e.now().Add(time.Duration(seconds) * time.Second)
	if err := e.repo.SetPause(ctx, connectorID, until, domain.PauseReasonManual); err != nil {
		return fmt.Errorf("op=throttle.pauseDispatch: %w", err)
	}
	return nil
}

// ResumeDispatch clears any pause for connectorID.
func (e *Enforcer) ResumeDispatch(ctx domain.Context, connectorID int64) error {
	if err := e.repo.ClearPause(ctx, connectorID); err != nil {
		return fmt.Errorf("op=throttle.resumeDispatch: %w", err)
	}
	return nil
}

// ResetExpiredWindowsResult is the return shape of the bulk tick.
type ResetExpiredWindowsResult struct {
	MinuteReset   int
	DayReset      int
	PausesCleared int
}

// ResetExpiredWindows runs the periodic bulk tick: resets expired
// minute/day windows, clears expired pauses.
func (e *Enforcer) ResetExpiredWindows(ctx domain.Context) (ResetExpiredWindowsResult, error) {
	minuteReset, dayReset, pausesCleared, err := e.repo.ResetExpiredWindows(ctx, e.now())
	if err != nil {
		return ResetExpiredWindowsResult{}, fmt.Errorf("op=throttle.resetExpiredWindows: %w", err)
	}
	return ResetExpiredWindowsResult{MinuteReset: minuteReset, DayReset: dayReset, PausesCleared: pausesCleared}, nil
}
