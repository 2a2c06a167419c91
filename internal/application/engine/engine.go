package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/application/weather"
	"github.com/go-reservas-api/internal/domain"
)

// Job names accepted by RunJobManually.
const (
	JobReminders = "reminders"
	JobWeather   = "weather"
	JobCleanup   = "cleanup"
	JobUpcoming  = "upcoming"
)

const defaultImminentWindow = 30 * time.Minute

type reservationStore interface {
	Get(ctx context.Context, reservationID string) (*domain.Reservation, error)
	QueryByStatus(ctx context.Context, status domain.Status) ([]domain.Reservation, error)
	QueryByStatusAndRange(ctx context.Context, status domain.Status, from, to time.Time) ([]domain.Reservation, error)
	MarkReminderSent(ctx context.Context, reservationID string, at time.Time) error
	MarkImminentSent(ctx context.Context, reservationID string, at time.Time) error
}

type userStore interface {
	ScanWithPushToken(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type notifier interface {
	Send(ctx context.Context, n push.Notification) push.Result
}

type gatekeeper interface {
	CanReceive(ctx context.Context, userID string, topic domain.Topic) preference.Decision
}

type weatherSweeper interface {
	Run(ctx context.Context) (weather.Report, error)
}

type tokenChecker interface {
	ValidToken(token string) bool
}

type opsAlerter interface {
	Alert(ctx context.Context, subject, message string) error
}

// Engine schedules and delivers reservation notifications: armed one-shot
// reminders, periodic safety-net sweeps, weather alerts and token hygiene.
type Engine struct {
	reservations reservationStore
	users        userStore
	sender       notifier
	prefs        gatekeeper
	weather      weatherSweeper
	tokens       tokenChecker
	alerter      opsAlerter
	log          *slog.Logger

	enabled        bool
	loc            *time.Location
	lead           time.Duration
	reconcileSpan  time.Duration
	imminentWindow time.Duration

	sched *scheduler
	jobs  map[string]*Job

	started   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	now func() time.Time
}

// Deps wires the engine. Alerter may be nil (alerts are then dropped).
type Deps struct {
	Reservations reservationStore
	Users        userStore
	Sender       notifier
	Prefs        gatekeeper
	Weather      weatherSweeper
	Tokens       tokenChecker
	Alerter      opsAlerter
	Logger       *slog.Logger

	// Enabled gates the whole engine: when false, Start is a no-op and only
	// manual job runs work.
	Enabled bool
	// Location drives every job cadence and day boundary.
	Location *time.Location
	// ReminderLead is how long before a reservation its reminder fires.
	ReminderLead time.Duration
	// ReconcileWindow is how far ahead the startup reconciler looks.
	ReconcileWindow time.Duration
	// ImminentWindow is how close a reservation must be for the imminent
	// notice. Zero means 30 minutes.
	ImminentWindow time.Duration
}

func New(deps Deps) *Engine {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ImminentWindow == 0 {
		deps.ImminentWindow = defaultImminentWindow
	}

	e := &Engine{
		reservations:   deps.Reservations,
		users:          deps.Users,
		sender:         deps.Sender,
		prefs:          deps.Prefs,
		weather:        deps.Weather,
		tokens:         deps.Tokens,
		alerter:        deps.Alerter,
		log:            deps.Logger,
		enabled:        deps.Enabled,
		loc:            deps.Location,
		lead:           deps.ReminderLead,
		reconcileSpan:  deps.ReconcileWindow,
		imminentWindow: deps.ImminentWindow,
		now:            time.Now,
	}
	e.sched = newScheduler(e.fireReminder, func() time.Time { return e.now() }, e.log)
	e.jobs = map[string]*Job{
		JobReminders: newJob(JobReminders, Every(time.Hour), e.reminderSweep),
		JobWeather:   newJob(JobWeather, DailyAt(8, 0, e.loc), e.weatherSweep),
		JobCleanup:   newJob(JobCleanup, WeeklyAt(time.Sunday, 2, 0, e.loc), e.cleanupSweep),
		JobUpcoming:  newJob(JobUpcoming, Every(e.imminentWindow), e.imminentSweep),
	}
	return e
}

// Start reconciles pending reminders and launches the periodic jobs. When
// the engine is disabled it logs and does nothing; manual runs stay
// available. Calling Start twice is an error.
func (e *Engine) Start(ctx context.Context) error {
	if !e.enabled {
		e.log.Warn("notification engine disabled, not starting")
		return nil
	}
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already started: %w", domain.ErrConflict)
	}
	e.startedAt = e.now()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	armed, err := e.reconcile(ctx)
	if err != nil {
		// Startup still proceeds; the hourly sweep will pick up what the
		// reconciler missed.
		e.log.Error("startup reconciliation failed", "error", err)
		e.alert(ctx, "notification reconciliation failed", err.Error())
	} else {
		e.log.Info("startup reconciliation done", "armed", armed)
	}

	for _, j := range e.jobs {
		e.wg.Add(1)
		go func(j *Job) {
			defer e.wg.Done()
			j.loop(runCtx, e.now, e.log)
		}(j)
	}
	e.log.Info("notification engine started",
		"timezone", e.loc.String(), "reminder_lead", e.lead, "jobs", len(e.jobs))
	return nil
}

// Stop cancels all jobs and pending reminder timers and waits for in-flight
// runs to finish.
func (e *Engine) Stop() {
	if !e.started.CompareAndSwap(true, false) {
		return
	}
	e.cancel()
	e.sched.stopAll()
	e.wg.Wait()
	e.log.Info("notification engine stopped")
}

// RunJobManually fires the named job once, synchronously. Works even when
// the engine is disabled. An unknown name is ErrNotFound; a job already in
// flight is ErrConflict.
func (e *Engine) RunJobManually(ctx context.Context, name string) error {
	j, ok := e.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q: %w", name, domain.ErrNotFound)
	}
	if !j.Fire(ctx, e.log) {
		return fmt.Errorf("job %q already running: %w", name, domain.ErrConflict)
	}
	return nil
}

// Stats is the engine's diagnostics snapshot.
type Stats struct {
	Enabled        bool       `json:"enabled"`
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	Timezone       string     `json:"timezone"`
	ArmedReminders int        `json:"armed_reminders"`
	Jobs           []JobStats `json:"jobs"`
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Enabled:        e.enabled,
		Running:        e.started.Load(),
		Timezone:       e.loc.String(),
		ArmedReminders: e.sched.armed(),
	}
	if s.Running {
		at := e.startedAt
		s.StartedAt = &at
	}
	for _, name := range []string{JobReminders, JobWeather, JobCleanup, JobUpcoming} {
		s.Jobs = append(s.Jobs, e.jobs[name].Stats())
	}
	return s
}

// ArmReminder schedules the pre-reservation reminder for a confirmed
// reservation at startsAt minus the configured lead. Fire times already in
// the past are left to the periodic sweeps.
func (e *Engine) ArmReminder(reservationID string, startsAt time.Time) bool {
	return e.sched.arm(reservationID, startsAt.Add(-e.lead))
}

// DisarmReminder drops a pending reminder, for cancellations.
func (e *Engine) DisarmReminder(reservationID string) {
	e.sched.disarm(reservationID)
}

// NotifyConfirmation pushes the "reservation confirmed" notice to its owner
// and arms the reminder. Called by the reservation flow right after a
// reservation reaches confirmed.
func (e *Engine) NotifyConfirmation(ctx context.Context, reservationID string) error {
	res, err := e.reservations.Get(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("loading reservation %s: %w", reservationID, err)
	}
	if res.Status != domain.StatusConfirmed {
		return fmt.Errorf("reservation %s is %s, not confirmed: %w",
			reservationID, res.Status, domain.ErrBadRequest)
	}

	e.ArmReminder(res.ReservationID, res.StartsAt)

	decision := e.prefs.CanReceive(ctx, res.UserID, domain.TopicConfirmations)
	if !decision.Allowed {
		e.log.Info("confirmation notice suppressed",
			"reservation_id", reservationID, "user_id", res.UserID, "reason", decision.Reason)
		return nil
	}

	local := res.StartsAt.In(e.loc)
	result := e.sender.Send(ctx, push.Notification{
		Token: decision.Token,
		Title: "Reserva confirmada ✅",
		Body: fmt.Sprintf("Tu reserva de %s para el %s a las %s fue confirmada.",
			res.CourtName, local.Format("02/01"), local.Format("15:04")),
		Data: map[string]string{
			"type":      "reservationConfirmed",
			"reservaId": res.ReservationID,
		},
		UserID:        res.UserID,
		Topic:         domain.TopicConfirmations,
		ReservationID: res.ReservationID,
	})
	if !result.Delivered && result.Err != nil {
		return result.Err
	}
	return nil
}

// fireReminder is the armed-timer callback. It re-reads the reservation at
// fire time so a cancellation after arming sends nothing.
func (e *Engine) fireReminder(reservationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := e.reservations.Get(ctx, reservationID)
	if err != nil {
		e.log.Warn("reminder aborted, reservation unreadable",
			"reservation_id", reservationID, "error", err)
		return
	}
	e.deliverReminder(ctx, res)
}

// deliverReminder sends the reminder and flags the reservation afterwards.
// Shared by the armed timer and the hourly sweep. The flag is set only on a
// delivered send, so a failed or suppressed delivery stays eligible for the
// next sweep; the conditional update makes a concurrent double-flag harmless.
func (e *Engine) deliverReminder(ctx context.Context, res *domain.Reservation) {
	if res.Status != domain.StatusConfirmed || res.ReminderSent {
		return
	}

	decision := e.prefs.CanReceive(ctx, res.UserID, domain.TopicReminders)
	if !decision.Allowed {
		e.log.Info("reminder suppressed",
			"reservation_id", res.ReservationID, "user_id", res.UserID, "reason", decision.Reason)
		return
	}

	local := res.StartsAt.In(e.loc)
	result := e.sender.Send(ctx, push.Notification{
		Token: decision.Token,
		Title: "Recordatorio de reserva ⏰",
		Body: fmt.Sprintf("Tu reserva de %s comienza a las %s.",
			res.CourtName, local.Format("15:04")),
		Data: map[string]string{
			"type":      "reservationReminder",
			"reservaId": res.ReservationID,
		},
		UserID:        res.UserID,
		Topic:         domain.TopicReminders,
		ReservationID: res.ReservationID,
	})
	if !result.Delivered {
		return
	}
	err := e.reservations.MarkReminderSent(ctx, res.ReservationID, e.now().UTC())
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		e.log.Error("marking reminder sent failed",
			"reservation_id", res.ReservationID, "error", err)
	}
}

func (e *Engine) alert(ctx context.Context, subject, message string) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, subject, message); err != nil {
		e.log.Warn("ops alert failed", "subject", subject, "error", err)
	}
}
