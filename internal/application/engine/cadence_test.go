package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_AlignsToWallClock(t *testing.T) {
	c := Every(30 * time.Minute)

	after := time.Date(2026, 3, 1, 10, 12, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), c.Next(after))

	// Exactly on a boundary resolves to the following slot, never itself.
	boundary := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), c.Next(boundary))
}

func TestDailyAt(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	c := DailyAt(8, 0, loc)

	before := time.Date(2026, 3, 1, 6, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, loc), c.Next(before))

	after := time.Date(2026, 3, 1, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, loc), c.Next(after))
}

func TestDailyAt_UTCInputStillFiresAtLocalTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)
	c := DailyAt(8, 0, loc)

	// 10:00 UTC is 07:00 in Buenos Aires, so today's 08:00 local is next.
	after := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := c.Next(after)
	assert.True(t, next.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, loc)))
}

func TestWeeklyAt(t *testing.T) {
	c := WeeklyAt(time.Sunday, 2, 0, time.UTC)

	// 2026-03-01 is a Sunday.
	saturday := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC), c.Next(saturday))

	// Later the same Sunday rolls a full week forward.
	sundayNoon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 8, 2, 0, 0, 0, time.UTC), c.Next(sundayNoon))
}
