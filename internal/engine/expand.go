package engine

import "time"

// ExpandSpec carries everything the expander needs to turn one birth date
// into the desired set of yearly events.
type ExpandSpec struct {
	PersonKey string
	Name      string
	BirthDate BirthDate
	Horizon   Horizon
	Policy    LeapPolicy
	// Reminders is the default template attached to every produced event.
	Reminders []Reminder
}

// Expand produces the desired all-day event for every calendar year in
// [today.Year()-Past, today.Year()+Future]. The year of birth never
// restricts recurrence except that no event precedes it when known.
// Under LeapSkipYear, non-leap years yield no event for Feb 29 births.
func Expand(spec ExpandSpec, today time.Time) []CalendarEvent {
	currentYear := today.Year()
	first := currentYear - spec.Horizon.Past
	last := currentYear + spec.Horizon.Future

	var events []CalendarEvent
	for y := first; y <= last; y++ {
		if spec.BirthDate.YearKnown && y < spec.BirthDate.Year {
			continue
		}
		start, ok := spec.BirthDate.DateForYear(y, spec.Policy)
		if !ok {
			continue
		}
		events = append(events, CalendarEvent{
			PersonKey: spec.PersonKey,
			Year:      y,
			Title:     EventTitle(spec.Name, spec.BirthDate, y),
			Start:     start,
			End:       start.AddDate(0, 0, 1),
			AllDay:    true,
			Reminders: cloneReminders(spec.Reminders),
		})
	}
	return events
}

// ExpandNext produces only the single nearest occurrence on or after
// today, plus lookahead further years when requested. It is the narrow
// counterpart of Expand used after a single birthday edit.
func ExpandNext(spec ExpandSpec, today time.Time, lookahead int) []CalendarEvent {
	next := spec.BirthDate.NextOccurrenceOnOrAfter(today, spec.Policy)

	var events []CalendarEvent
	for y := next.Year(); y <= next.Year()+lookahead; y++ {
		if spec.BirthDate.YearKnown && y < spec.BirthDate.Year {
			continue
		}
		start, ok := spec.BirthDate.DateForYear(y, spec.Policy)
		if !ok {
			continue
		}
		events = append(events, CalendarEvent{
			PersonKey: spec.PersonKey,
			Year:      y,
			Title:     EventTitle(spec.Name, spec.BirthDate, y),
			Start:     start,
			End:       start.AddDate(0, 0, 1),
			AllDay:    true,
			Reminders: cloneReminders(spec.Reminders),
		})
	}
	return events
}

func cloneReminders(rs []Reminder) []Reminder {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Reminder, len(rs))
	copy(out, rs)
	return out
}
