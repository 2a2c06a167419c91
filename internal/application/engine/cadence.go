package engine

import "time"

// Cadence computes when a periodic job fires next. Implementations are
// stateless so a missed tick (process paused, clock jump) simply resolves to
// the following slot.
type Cadence interface {
	Next(after time.Time) time.Time
}

type everyCadence struct {
	interval time.Duration
}

// Every fires on wall-clock multiples of interval (a 30-minute cadence fires
// at :00 and :30, not 30 minutes after startup).
func Every(interval time.Duration) Cadence {
	return everyCadence{interval: interval}
}

func (c everyCadence) Next(after time.Time) time.Time {
	next := after.Truncate(c.interval).Add(c.interval)
	if !next.After(after) {
		next = next.Add(c.interval)
	}
	return next
}

type dailyCadence struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt fires once a day at the given local time.
func DailyAt(hour, minute int, loc *time.Location) Cadence {
	return dailyCadence{hour: hour, minute: minute, loc: loc}
}

func (c dailyCadence) Next(after time.Time) time.Time {
	local := after.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.hour, c.minute, 0, 0, c.loc)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type weeklyCadence struct {
	weekday      time.Weekday
	hour, minute int
	loc          *time.Location
}

// WeeklyAt fires once a week on the given weekday at the given local time.
func WeeklyAt(weekday time.Weekday, hour, minute int, loc *time.Location) Cadence {
	return weeklyCadence{weekday: weekday, hour: hour, minute: minute, loc: loc}
}

func (c weeklyCadence) Next(after time.Time) time.Time {
	local := after.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), c.hour, c.minute, 0, 0, c.loc)
	days := (int(c.weekday) - int(next.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(after) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
