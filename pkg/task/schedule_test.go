package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSchedule covers the accepted cron shapes
func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		tz      string
		wantErr bool
	}{
		{name: "five field", expr: "*/15 * * * *"},
		{name: "six field with seconds", expr: "30 */5 * * * *"},
		{name: "named timezone", expr: "0 9 * * 1-5", tz: "Europe/Paris"},
		{name: "garbage", expr: "every day at noon", wantErr: true},
		{name: "unknown timezone", expr: "0 * * * *", tz: "Mars/Olympus", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.expr, tt.tz)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCron)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, sched.Expression())
		})
	}
}

// TestNextAfterStrictlyIncreases verifies the round-trip law
// next_after(next_after(t)) > next_after(t).
func TestNextAfterStrictlyIncreases(t *testing.T) {
	sched, err := ParseSchedule("*/15 * * * *", "")
	require.NoError(t, err)

	t0 := time.Date(2026, 5, 1, 14, 14, 50, 0, time.UTC)
	first := sched.NextAfter(t0)
	second := sched.NextAfter(first)

	assert.True(t, first.After(t0))
	assert.True(t, second.After(first), "next_after must strictly increase")
	assert.Equal(t, time.Date(2026, 5, 1, 14, 15, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC), second)
}

// TestNextAfterTimezone verifies schedules evaluate in their zone
func TestNextAfterTimezone(t *testing.T) {
	sched, err := ParseSchedule("0 9 * * *", "Europe/Paris")
	require.NoError(t, err)

	// 07:30 UTC in July is 09:30 CEST, so the next 09:00 is tomorrow.
	t0 := time.Date(2026, 7, 10, 7, 30, 0, 0, time.UTC)
	next := sched.NextAfter(t0)

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 11, 9, 0, 0, 0, paris).UTC(), next.UTC())
}

// TestParseID covers the task id sum type
func TestParseID(t *testing.T) {
	t.Run("uuid loads as internal", func(t *testing.T) {
		id, err := ParseID("3b51a0c2-5f3e-4b53-9c4d-07a1b1f0f3aa")
		require.NoError(t, err)
		assert.False(t, id.IsUser())
	})

	t.Run("user id", func(t *testing.T) {
		id, err := ParseUserID("nightly-backup")
		require.NoError(t, err)
		assert.True(t, id.IsUser())
		assert.Equal(t, "nightly-backup", id.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseUserID("")
		assert.ErrorIs(t, err, ErrInvalidUserID)
	})

	t.Run("rejects whitespace", func(t *testing.T) {
		for _, s := range []string{"nightly backup", "a\tb", " lead", "trail "} {
			_, err := ParseUserID(s)
			assert.ErrorIs(t, err, ErrInvalidUserID, "id %q", s)
		}
	})
}
