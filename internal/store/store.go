package store

import (
	"context"
	"time"

	"github.com/calorbit/birthday-sync/internal/engine"
)

// Reader is the calendar store query surface.
//
// Linkage between an event and its originating person is title-based:
// the store has no join table, so a title collision with an unrelated
// event of the same name on the same day is indistinguishable from a
// true match. This is a documented limitation of the default backend;
// richer stores can implement Reader with exact-identifier linkage
// without changing the reconciler's contract.
type Reader interface {
	// EventsByTitleAndStarts returns all-day events whose start instant
	// is in starts and whose title contains titleContains.
	EventsByTitleAndStarts(ctx context.Context, titleContains string, starts []time.Time) ([]engine.CalendarEvent, error)

	// EventsByTitleInRange returns all-day events whose start instant
	// falls in [from, to) and whose title contains titleContains. The
	// full-horizon pass uses it so manually moved or orphaned events are
	// visible for update and deletion, not only events sitting exactly
	// on a candidate instant.
	EventsByTitleInRange(ctx context.Context, titleContains string, from, to time.Time) ([]engine.CalendarEvent, error)

	// RemindersForEvent returns the reminders owned by one event.
	RemindersForEvent(ctx context.Context, eventID int64) ([]engine.Reminder, error)

	// AllEvents returns every stored event with reminders populated,
	// ordered by start instant. Used by the feed renderer.
	AllEvents(ctx context.Context) ([]engine.CalendarEvent, error)
}

// Writer is the atomic-apply surface.
type Writer interface {
	// ApplyBatch commits the whole batch or nothing. It returns, for
	// each operation, the newly assigned identifier in positional order
	// (zero for non-insert operations).
	ApplyBatch(ctx context.Context, b Batch) ([]int64, error)
}

// Store combines both surfaces.
type Store interface {
	Reader
	Writer
}
