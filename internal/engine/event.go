package engine

import (
	"fmt"
	"time"

	"github.com/calorbit/birthday-sync/internal/config"
)

// Reminder is a notification offset attached to exactly one CalendarEvent.
// Its identifier exists only once the owning event is persisted, which is
// why inserts need back-references inside a batch.
type Reminder struct {
	// ID is the store-assigned identifier, 0 until persisted.
	ID int64
	// MinutesBefore is a non-negative offset before the event start.
	MinutesBefore int
}

// CalendarEvent is one yearly materialization of a birthday, either
// desired (ID 0, produced by the expander) or existing (ID set, read back
// from the store).
type CalendarEvent struct {
	// ID is the store-assigned identifier, 0 for not-yet-persisted events.
	ID int64

	// PersonKey is the stable identity of the person in the directory.
	PersonKey string

	// Year is the calendar year of this occurrence. Together with
	// PersonKey it forms the logical identity of the event; the exact
	// start instant does not, since timezone normalization may shift it.
	Year int

	Title       string
	Description string

	// Start and End are UTC-midnight boundaries of the civil day
	// (see UTCMidnight).
	Start  time.Time
	End    time.Time
	AllDay bool

	Reminders []Reminder
}

// OccurrenceKey is the logical identity of one yearly occurrence.
type OccurrenceKey struct {
	PersonKey string
	Year      int
}

// Key returns the event's logical identity.
func (e CalendarEvent) Key() OccurrenceKey {
	return OccurrenceKey{PersonKey: e.PersonKey, Year: e.Year}
}

// Persisted reports whether the store has assigned an identifier.
func (e CalendarEvent) Persisted() bool {
	return e.ID != 0
}

// SameContent reports whether the stored fields the reconciler cares
// about already match: start instant, title and the all-day flag.
func (e CalendarEvent) SameContent(other CalendarEvent) bool {
	return e.Start.Equal(other.Start) && e.Title == other.Title && e.AllDay == other.AllDay
}

// EventTitle renders the event summary for one target year. The age is
// only shown when the year of birth is known.
func EventTitle(name string, b BirthDate, year int) string {
	if !b.YearKnown {
		return fmt.Sprintf(config.EventTitleFormat, name)
	}
	age := year - b.Year
	if age == 0 {
		return fmt.Sprintf(config.EventTitleFormatBirth, name)
	}
	return fmt.Sprintf(config.EventTitleFormatAge, name, age)
}

// Horizon is the window of calendar years expanded around "today".
type Horizon struct {
	// Past and Future are non-negative year counts around the current year.
	Past   int
	Future int
}

// DefaultHorizon mirrors the configuration defaults.
func DefaultHorizon() Horizon {
	return Horizon{Past: config.DefaultHorizonPast, Future: config.DefaultHorizonFuture}
}
