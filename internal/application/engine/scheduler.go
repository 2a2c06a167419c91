package engine

import (
	"log/slog"
	"sync"
	"time"
)

// scheduler owns the in-memory one-shot timers for armed reminders, keyed by
// reservation id. Arming the same reservation twice replaces the pending
// timer, so re-confirmations and the startup reconciler never double-arm.
type scheduler struct {
	fire func(reservationID string)
	now  func() time.Time
	log  *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newScheduler(fire func(reservationID string), now func() time.Time, log *slog.Logger) *scheduler {
	return &scheduler{
		fire:   fire,
		now:    now,
		log:    log,
		timers: make(map[string]*time.Timer),
	}
}

// arm schedules fire(reservationID) at fireAt. A fire time already in the
// past is not armed; the periodic sweeps cover those. Reports whether a
// timer was set.
func (s *scheduler) arm(reservationID string, fireAt time.Time) bool {
	delay := fireAt.Sub(s.now())
	if delay <= 0 {
		s.log.Debug("reminder fire time already past, leaving to sweep",
			"reservation_id", reservationID, "fire_at", fireAt)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[reservationID]; ok {
		prev.Stop()
	}
	s.timers[reservationID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, reservationID)
		s.mu.Unlock()
		s.fire(reservationID)
	})
	s.log.Debug("reminder armed", "reservation_id", reservationID, "fire_at", fireAt)
	return true
}

// disarm cancels a pending reminder, if any.
func (s *scheduler) disarm(reservationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[reservationID]; ok {
		t.Stop()
		delete(s.timers, reservationID)
	}
}

// armed reports how many reminders currently hold a pending timer.
func (s *scheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// stopAll cancels every pending timer.
func (s *scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
