// Package clock provides pure, injectable-time utilities for window-expiry
// predicates and jittered exponential backoff.
package clock

import (
	"math"
	"math/rand"
	"time"
)

// StartOfDayUTC truncates t to midnight UTC.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfNextDayUTC returns the midnight UTC strictly after t.
func StartOfNextDayUTC(t time.Time) time.Time {
	return StartOfDayUTC(t).AddDate(0, 0, 1)
}

// IsMinuteWindowExpired reports whether a per-minute window started at
// start has elapsed as of now. A nil start is always expired.
func IsMinuteWindowExpired(start *time.Time, now time.Time) bool {
	if start == nil {
		return true
	}
	return !now.Before(start.Add(60 * time.Second))
}

// IsDayWindowExpired reports whether a daily window started at start has
// elapsed as of now. A nil start is always expired.
func IsDayWindowExpired(start *time.Time, now time.Time) bool {
	if start == nil {
		return true
	}
	return StartOfDayUTC(now).After(StartOfDayUTC(*start))
}

// MsUntilMinuteWindowExpires returns the non-negative number of
// milliseconds until a minute window started at start expires.
func MsUntilMinuteWindowExpires(start *time.Time, now time.Time) int64 {
	if start == nil {
		return 0
	}
	remaining := start.Add(60 * time.Second).Sub(now).Milliseconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MsUntilMidnightUTC returns the milliseconds between now and the next UTC
// midnight.
func MsUntilMidnightUTC(now time.Time) int64 {
	return StartOfNextDayUTC(now).Sub(now).Milliseconds()
}

// BackoffShape parameterises the jittered exponential backoff curve used
// both for reconnect attempts and HTTP retries.
type BackoffShape struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fractional, e.g. 0.25 for ±25%
}

// ReconnectBackoff is the default reconnect backoff shape: base 30s, max
// 600s, multiplier 2, jitter ±25%.
var ReconnectBackoff = BackoffShape{
	Base:       30 * time.Second,
	Max:        600 * time.Second,
	Multiplier: 2,
	Jitter:     0.25,
}

// HTTPRetryBackoff is the default HTTP retry backoff shape: base 1s, max
// 30s, multiplier 2, jitter ±25%.
var HTTPRetryBackoff = BackoffShape{
	Base:       1 * time.Second,
	Max:        30 * time.Second,
	Multiplier: 2,
	Jitter:     0.25,
}

// Backoff returns floor(min(base*multiplier^attempt, max) * (1 + U(-jitter, +jitter)))
// for the given shape and attempt number, using randFn (usually rand.Float64)
// for the jitter draw so callers can make the result deterministic in tests.
func Backoff(shape BackoffShape, attempt int, randFn func() float64) time.Duration {
	if randFn == nil {
		randFn = rand.Float64
	}
	capped := math.Min(
		float64(shape.Base)*math.Pow(shape.Multiplier, float64(attempt)),
		float64(shape.Max),
	)
	jitterFactor := 1 + (randFn()*2-1)*shape.Jitter
	result := capped * jitterFactor
	if result < 0 {
		result = 0
	}
	return time.Duration(math.Floor(result))
}
