package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-reservas-api/internal/application/preference"
	"github.com/go-reservas-api/internal/application/push"
	"github.com/go-reservas-api/internal/domain"
	"github.com/go-reservas-api/internal/infrastructure/openweather"
)

// Alert severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Adverse-condition thresholds for outdoor court play.
const (
	heavyRainMM3h = 2.5  // mm over a 3-hour slot
	strongWindMS  = 10.0 // m/s
	coldLimitC    = 5.0
	heatLimitC    = 35.0
)

// Alert summarizes the adverse conditions found in a day's forecast.
type Alert struct {
	Severity   string   `json:"severity"`
	Conditions []string `json:"conditions"`
}

// Headline renders the alert as a one-line push body.
func (a *Alert) Headline() string {
	return "Se esperan " + strings.Join(a.Conditions, ", ") + " para mañana. Revisá tu reserva."
}

// Classify scans a day's forecast slots and returns an Alert when any slot
// crosses a threshold, or nil when the day looks playable. Conditions are
// deduplicated and ordered, worst severity wins.
func Classify(fc *openweather.Forecast) *Alert {
	found := map[string]string{} // condition label -> severity
	add := func(label, severity string) {
		if found[label] != SeverityHigh {
			found[label] = severity
		}
	}
	for _, e := range fc.Entries {
		switch e.Condition {
		case "Thunderstorm":
			add("tormentas eléctricas", SeverityHigh)
		case "Snow":
			add("nieve", SeverityHigh)
		case "Rain", "Drizzle":
			if e.Rain3hMM > heavyRainMM3h {
				add("lluvia intensa", SeverityHigh)
			} else {
				add("lluvia", SeverityMedium)
			}
		}
		if e.WindSpeed > strongWindMS {
			add("viento fuerte", SeverityMedium)
		}
		if e.TempC < coldLimitC {
			add("frío intenso", SeverityMedium)
		}
		if e.TempC > heatLimitC {
			add("calor extremo", SeverityHigh)
		}
	}
	if len(found) == 0 {
		return nil
	}

	alert := &Alert{Severity: SeverityMedium}
	for label, severity := range found {
		alert.Conditions = append(alert.Conditions, label)
		if severity == SeverityHigh {
			alert.Severity = SeverityHigh
		}
	}
	sort.Strings(alert.Conditions)
	return alert
}

// Outlook is the assessment served by the diagnostics endpoint.
type Outlook struct {
	Location string              `json:"location"`
	Date     string              `json:"date"`
	Alert    *Alert              `json:"alert,omitempty"`
	Entries  []openweather.Entry `json:"entries"`
}

type forecaster interface {
	Forecast(ctx context.Context, location string, date time.Time) (*openweather.Forecast, error)
}

type reservationStore interface {
	QueryByStatusAndRange(ctx context.Context, status domain.Status, from, to time.Time) ([]domain.Reservation, error)
}

type complexStore interface {
	Get(ctx context.Context, complexID string) (*domain.Complex, error)
}

type notifier interface {
	Send(ctx context.Context, n push.Notification) push.Result
}

type gatekeeper interface {
	CanReceive(ctx context.Context, userID string, topic domain.Topic) preference.Decision
}

// Checker warns players the day before their reservation when the forecast
// for the court's location looks adverse.
type Checker struct {
	forecasts    forecaster
	reservations reservationStore
	complexes    complexStore
	sender       notifier
	prefs        gatekeeper
	loc          *time.Location
	log          *slog.Logger

	now func() time.Time
}

type CheckerDeps struct {
	Forecasts    forecaster
	Reservations reservationStore
	Complexes    complexStore
	Sender       notifier
	Prefs        gatekeeper
	Location     *time.Location
	Logger       *slog.Logger
}

func NewChecker(deps CheckerDeps) *Checker {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Checker{
		forecasts:    deps.Forecasts,
		reservations: deps.Reservations,
		complexes:    deps.Complexes,
		sender:       deps.Sender,
		prefs:        deps.Prefs,
		loc:          deps.Location,
		log:          deps.Logger,
		now:          time.Now,
	}
}

// Report is the outcome of one weather sweep.
type Report struct {
	Reservations int `json:"reservations"`
	Alerted      int `json:"alerted_locations"`
	Sent         int `json:"sent"`
	Skipped      int `json:"skipped"`
}

// Run checks tomorrow's confirmed reservations against the forecast of each
// facility's location and notifies the opted-in player of every affected
// reservation; the per-recipient rate limit is the only throttle. Forecast
// failures for one location skip that location only.
func (c *Checker) Run(ctx context.Context) (Report, error) {
	var report Report

	now := c.now().In(c.loc)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc).AddDate(0, 0, 1)
	from := tomorrow
	to := tomorrow.AddDate(0, 0, 1)

	reservations, err := c.reservations.QueryByStatusAndRange(ctx, domain.StatusConfirmed, from, to)
	if err != nil {
		return report, fmt.Errorf("weather: loading tomorrow's reservations: %w", err)
	}
	report.Reservations = len(reservations)
	if len(reservations) == 0 {
		return report, nil
	}

	byComplex := map[string]*assessment{}

	for _, res := range reservations {
		tgt, seen := byComplex[res.ComplexID]
		if !seen {
			tgt = c.assess(ctx, res.ComplexID, tomorrow)
			byComplex[res.ComplexID] = tgt
			if tgt != nil && tgt.alert != nil {
				report.Alerted++
			}
		}
		if tgt == nil || tgt.alert == nil {
			continue
		}

		decision := c.prefs.CanReceive(ctx, res.UserID, domain.TopicWeatherAlerts)
		if !decision.Allowed {
			c.log.Debug("weather: skipping recipient",
				"user_id", res.UserID, "reason", decision.Reason)
			report.Skipped++
			continue
		}

		result := c.sender.Send(ctx, push.Notification{
			Token: decision.Token,
			Title: "Alerta meteorológica ⛈️",
			Body:  tgt.alert.Headline(),
			Data: map[string]string{
				"type":     "weatherAlert",
				"severity": tgt.alert.Severity,
				"location": tgt.location,
			},
			UserID:        res.UserID,
			Topic:         domain.TopicWeatherAlerts,
			ReservationID: res.ReservationID,
		})
		if result.Delivered {
			report.Sent++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

type assessment struct {
	location string
	alert    *Alert
}

// assess resolves the complex location and classifies tomorrow's forecast.
// Returns nil when the complex or its forecast cannot be resolved.
func (c *Checker) assess(ctx context.Context, complexID string, date time.Time) *assessment {
	cx, err := c.complexes.Get(ctx, complexID)
	if err != nil {
		c.log.Warn("weather: complex lookup failed", "complex_id", complexID, "error", err)
		return nil
	}
	location := cx.ForecastLocation()
	if location == "" {
		c.log.Warn("weather: complex has no location", "complex_id", complexID)
		return nil
	}
	fc, err := c.forecasts.Forecast(ctx, location, date)
	if err != nil {
		c.log.Warn("weather: forecast failed", "location", location, "error", err)
		return nil
	}
	return &assessment{location: location, alert: Classify(fc)}
}

// Assess returns the forecast and alert classification for an arbitrary
// location. A zero date means tomorrow. Used by the diagnostics endpoint.
func (c *Checker) Assess(ctx context.Context, location string, date time.Time) (*Outlook, error) {
	if date.IsZero() {
		date = c.now().In(c.loc).AddDate(0, 0, 1)
	}
	// Re-anchor to midnight in the facility zone so day filtering is stable
	// regardless of how the caller parsed the date.
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.loc)

	fc, err := c.forecasts.Forecast(ctx, location, date)
	if err != nil {
		return nil, err
	}
	return &Outlook{
		Location: location,
		Date:     date.Format("2006-01-02"),
		Alert:    Classify(fc),
		Entries:  fc.Entries,
	}, nil
}
