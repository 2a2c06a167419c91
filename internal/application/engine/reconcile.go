package engine

import (
	"context"
	"fmt"

	"github.com/go-reservas-api/internal/domain"
)

// reconcile re-arms reminders lost to the previous process's death. It runs
// once at startup: every confirmed reservation starting inside the
// reconciliation window whose reminder has not fired gets a fresh timer.
// The status query is deliberately unbounded on time — the confirmed set is
// small and the range filter happens here, where the window arithmetic is
// testable.
func (e *Engine) reconcile(ctx context.Context) (int, error) {
	reservations, err := e.reservations.QueryByStatus(ctx, domain.StatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("reconcile: loading confirmed reservations: %w", err)
	}

	now := e.now()
	horizon := now.Add(e.reconcileSpan)
	armed := 0
	for _, res := range reservations {
		if res.ReminderSent {
			continue
		}
		if !res.StartsAt.After(now) || res.StartsAt.After(horizon) {
			continue
		}
		if e.ArmReminder(res.ReservationID, res.StartsAt) {
			armed++
		}
	}
	return armed, nil
}
