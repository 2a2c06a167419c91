package push

import (
	"sync"
	"time"
)

// recipientWindow holds the recorded send timestamps for one recipient.
// Each recipient has its own mutex so checks for different recipients never
// block each other; check-then-record for the same recipient is one critical
// section.
type recipientWindow struct {
	mu       sync.Mutex
	times    []time.Time
	lastSeen time.Time
}

// RateLimiter is a per-recipient sliding-window throttle. Timestamps older
// than the window are pruned lazily on each check. Process-local only.
type RateLimiter struct {
	limit   int
	window  time.Duration
	entries sync.Map // recipient id -> *recipientWindow

	now func() time.Time
}

// NewRateLimiter allows at most limit sends per recipient within any rolling
// window of the given length.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{limit: limit, window: window, now: time.Now}
	go rl.cleanup()
	return rl
}

// Allow reports whether a send to the recipient is permitted right now and,
// when it is, records the attempt.
func (rl *RateLimiter) Allow(recipientID string) bool {
	v, _ := rl.entries.LoadOrStore(recipientID, &recipientWindow{})
	w := v.(*recipientWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := rl.now()
	w.lastSeen = now

	kept := w.times[:0]
	for _, ts := range w.times {
		if now.Sub(ts) < rl.window {
			kept = append(kept, ts)
		}
	}
	w.times = kept

	if len(w.times) >= rl.limit {
		return false
	}
	w.times = append(w.times, now)
	return true
}

// cleanup removes recipients that have been idle for well over a window.
func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		cutoff := rl.now().Add(-(rl.window + 10*time.Minute))
		rl.entries.Range(func(k, v interface{}) bool {
			w := v.(*recipientWindow)
			w.mu.Lock()
			stale := w.lastSeen.Before(cutoff)
			w.mu.Unlock()
			if stale {
				rl.entries.Delete(k)
			}
			return true
		})
	}
}
