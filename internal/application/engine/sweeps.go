package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
)

// reminderSweep is the hourly safety net behind the armed timers: any
// confirmed reservation already inside the reminder lead whose flag is still
// unset gets its reminder now. Overlap with a firing timer can at worst
// double-send; a missed reminder is the outcome that matters.
func (e *Engine) reminderSweep(ctx context.Context) error {
	now := e.now()
	reservations, err := e.reservations.QueryByStatusAndRange(ctx, domain.StatusConfirmed, now, now.Add(e.lead))
	if err != nil {
		e.alert(ctx, "reminder sweep failed", err.Error())
		return fmt.Errorf("reminder sweep: %w", err)
	}
	for _, res := range reservations {
		if res.ReminderSent {
			continue
		}
		e.deliverReminder(ctx, &res)
	}
	return nil
}

// imminentSweep notifies players whose reservation starts within the
// imminent window. It exists for reservations confirmed too late for the
// regular reminder.
func (e *Engine) imminentSweep(ctx context.Context) error {
	now := e.now()
	reservations, err := e.reservations.QueryByStatusAndRange(ctx, domain.StatusConfirmed, now, now.Add(e.imminentWindow))
	if err != nil {
		e.alert(ctx, "imminent sweep failed", err.Error())
		return fmt.Errorf("imminent sweep: %w", err)
	}
	for _, res := range reservations {
		if res.ImminentSent {
			continue
		}
		e.deliverImminent(ctx, &res)
	}
	return nil
}

// deliverImminent sends the starting-soon push and flags the reservation only
// after a delivered send, so failures stay eligible for the next sweep.
func (e *Engine) deliverImminent(ctx context.Context, res *domain.Reservation) {
	decision := e.prefs.CanReceive(ctx, res.UserID, domain.TopicReminders)
	if !decision.Allowed {
		e.log.Info("imminent notice suppressed",
			"reservation_id", res.ReservationID, "user_id", res.UserID, "reason", decision.Reason)
		return
	}

	local := res.StartsAt.In(e.loc)
	result := e.sender.Send(ctx, push.Notification{
		Token: decision.Token,
		Title: "Tu reserva comienza pronto 🏃",
		Body: fmt.Sprintf("%s te espera a las %s. ¡No llegues tarde!",
			res.CourtName, local.Format("15:04")),
		Data: map[string]string{
			"type":      "reservationImminent",
			"reservaId": res.ReservationID,
		},
		UserID:        res.UserID,
		Topic:         domain.TopicReminders,
		ReservationID: res.ReservationID,
	})
	if !result.Delivered {
		return
	}
	err := e.reservations.MarkImminentSent(ctx, res.ReservationID, e.now().UTC())
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		e.log.Error("marking imminent sent failed",
			"reservation_id", res.ReservationID, "error", err)
	}
}

// weatherSweep runs the next-day forecast check.
func (e *Engine) weatherSweep(ctx context.Context) error {
	report, err := e.weather.Run(ctx)
	if err != nil {
		e.alert(ctx, "weather sweep failed", err.Error())
		return err
	}
	e.log.Info("weather sweep done",
		"reservations", report.Reservations, "alerted_locations", report.Alerted,
		"sent", report.Sent, "skipped", report.Skipped)
	return nil
}

// cleanupSweep clears stored push tokens that no longer match the gateway
// token grammar, so later sends stop wasting attempts on them.
func (e *Engine) cleanupSweep(ctx context.Context) error {
	users, err := e.users.ScanWithPushToken(ctx)
	if err != nil {
		e.alert(ctx, "token cleanup failed", err.Error())
		return fmt.Errorf("token cleanup: %w", err)
	}

	cleaned := 0
	for _, u := range users {
		if u.PushToken == nil || e.tokens.ValidToken(*u.PushToken) {
			continue
		}
		err := e.users.Update(ctx, u.UserID, map[string]interface{}{
			"push_token":       nil,
			"token_cleaned_at": e.now().UTC(),
		})
		if err != nil {
			e.log.Error("clearing malformed token failed", "user_id", u.UserID, "error", err)
			continue
		}
		cleaned++
	}
	e.log.Info("token cleanup done", "scanned", len(users), "cleaned", cleaned)
	return nil
}
