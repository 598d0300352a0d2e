package domain

import (
	"time"

	"github.com/google/uuid"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch Recurrence(s) {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return Recurrence(s), nil
	}
	return "", ErrInvalidInput
}

func (r Recurrence) step(t time.Time) time.Time {
	switch r {
	case RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// ExpandInstances materializes the bookable occurrences of an event at
// creation time: a single instance for one-off events, or one per calendar
// step from StartsAt through RecurrenceEnd inclusive. Each instance carries
// its own independent sold counter.
func ExpandInstances(e Event) []EventInstance {
	if !e.IsRecurring() {
		return []EventInstance{{
			ID:       uuid.New(),
			EventID:  e.ID,
			StartsAt: e.StartsAt,
			Location: e.Location,
		}}
	}

	var out []EventInstance
	for t := e.StartsAt; !t.After(e.RecurrenceEnd); t = e.Recurrence.step(t) {
		out = append(out, EventInstance{
			ID:       uuid.New(),
			EventID:  e.ID,
			StartsAt: t,
			Location: e.Location,
		})
	}
	return out
}
