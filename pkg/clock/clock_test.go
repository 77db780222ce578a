package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"comradarr/pkg/clock"
)

func TestStartOfDayUTC(t *testing.T) {
	in := time.Date(2026, 7, 29, 14, 32, 10, 0, time.UTC)
	got := clock.StartOfDayUTC(in)
	assert.Equal(t, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfNextDayUTC(t *testing.T) {
	in := time.Date(2026, 7, 29, 23, 59, 59, 0, time.UTC)
	got := clock.StartOfNextDayUTC(in)
	assert.Equal(t, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), got)
}

func TestIsMinuteWindowExpired(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	assert.True(t, clock.IsMinuteWindowExpired(nil, now))

	fresh := now.Add(-30 * time.Second)
	assert.False(t, clock.IsMinuteWindowExpired(&fresh, now))

	stale := now.Add(-61 * time.Second)
	assert.True(t, clock.IsMinuteWindowExpired(&stale, now))

	exact := now.Add(-60 * time.Second)
	assert.True(t, clock.IsMinuteWindowExpired(&exact, now))
}

func TestIsDayWindowExpired(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 1, 0, time.UTC)

	assert.True(t, clock.IsDayWindowExpired(nil, now))

	sameDay := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	assert.False(t, clock.IsDayWindowExpired(&sameDay, now))

	yesterday := time.Date(2026, 7, 28, 12, 0, 0, 0, time.UTC)
	assert.True(t, clock.IsDayWindowExpired(&yesterday, now))
}

func TestMsUntilMinuteWindowExpires(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	start := now.Add(-40 * time.Second)

	assert.Equal(t, int64(20000), clock.MsUntilMinuteWindowExpires(&start, now))
	assert.Equal(t, int64(0), clock.MsUntilMinuteWindowExpires(nil, now))

	expired := now.Add(-90 * time.Second)
	assert.Equal(t, int64(0), clock.MsUntilMinuteWindowExpires(&expired, now))
}

func TestMsUntilMidnightUTC(t *testing.T) {
	now := time.Date(2026, 7, 29, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, int64(60000), clock.MsUntilMidnightUTC(now))
}

func TestBackoff_Reconnect_WithinBounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		for _, draw := range []float64{0, 0.5, 1} {
			d := clock.Backoff(clock.ReconnectBackoff, attempt, func() float64 { return draw })
			base := 30000.0 * mathPow(2, float64(attempt))
			capped := base
			if capped > 600000 {
				capped = 600000
			}
			lower := time.Duration((1 - 0.25) * capped * float64(time.Millisecond))
			upper := time.Duration((1 + 0.25) * capped * float64(time.Millisecond))
			assert.GreaterOrEqual(t, d, lower)
			assert.LessOrEqual(t, d, upper)
			assert.GreaterOrEqual(t, d, time.Duration(0))
		}
	}
}

func TestBackoff_Deterministic_WithFixedRand(t *testing.T) {
	d1 := clock.Backoff(clock.HTTPRetryBackoff, 2, func() float64 { return 0.5 })
	d2 := clock.Backoff(clock.HTTPRetryBackoff, 2, func() float64 { return 0.5 })
	assert.Equal(t, d1, d2)
}

func mathPow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
