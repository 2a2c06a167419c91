package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := &RateLimiter{limit: limit, window: window, now: func() time.Time { return now }}
	return rl, &now
}

func TestRateLimiter_BlocksWithinWindow(t *testing.T) {
	rl, now := newTestLimiter(1, 60*time.Second)

	assert.True(t, rl.Allow("user-1"))

	*now = now.Add(10 * time.Second)
	assert.False(t, rl.Allow("user-1"), "second send 10s later must be blocked")
}

func TestRateLimiter_AllowsAfterWindowSlides(t *testing.T) {
	rl, now := newTestLimiter(1, 60*time.Second)

	assert.True(t, rl.Allow("user-1"))

	*now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("user-1"))
}

func TestRateLimiter_RecipientsAreIsolated(t *testing.T) {
	rl, _ := newTestLimiter(1, 60*time.Second)

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"), "user-2 must not be affected by user-1's sends")
	assert.False(t, rl.Allow("user-1"))
}

func TestRateLimiter_SlidingWindowNotFixedBuckets(t *testing.T) {
	rl, now := newTestLimiter(3, 300*time.Second)

	assert.True(t, rl.Allow("user-1"))
	*now = now.Add(100 * time.Second)
	assert.True(t, rl.Allow("user-1"))
	*now = now.Add(100 * time.Second)
	assert.True(t, rl.Allow("user-1"))

	// 250s after the first send: all three are still inside the window.
	*now = now.Add(50 * time.Second)
	assert.False(t, rl.Allow("user-1"))

	// 301s after the first send it has slid out, freeing one slot.
	*now = now.Add(51 * time.Second)
	assert.True(t, rl.Allow("user-1"))
}

func TestRateLimiter_DeniedAttemptNotRecorded(t *testing.T) {
	rl, now := newTestLimiter(1, 60*time.Second)

	assert.True(t, rl.Allow("user-1"))
	*now = now.Add(30 * time.Second)
	assert.False(t, rl.Allow("user-1"))

	// The denied attempt must not extend the block past the first send's
	// window.
	*now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("user-1"))
}
