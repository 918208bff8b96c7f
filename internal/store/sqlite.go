package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/engine"
)

// schema holds events and their dependent reminders. The foreign key is
// declared so reminder deletes must precede their event's delete inside
// one transaction.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	dtstart     INTEGER NOT NULL,
	dtend       INTEGER NOT NULL,
	all_day     INTEGER NOT NULL DEFAULT 1,
	timezone    TEXT NOT NULL DEFAULT 'UTC'
);
CREATE INDEX IF NOT EXISTS idx_events_dtstart ON events(dtstart);
CREATE TABLE IF NOT EXISTS reminders (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id       INTEGER NOT NULL REFERENCES events(id),
	minutes_before INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_event ON reminders(event_id);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the store at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	slog.Debug(config.MsgStoreOpened,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyStore, path,
	)
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EventsByTitleAndStarts implements Reader with a substring title match
// and a start-instant IN set, mirroring the only linkage the calendar
// backend offers.
func (s *SQLiteStore) EventsByTitleAndStarts(ctx context.Context, titleContains string, starts []time.Time) ([]engine.CalendarEvent, error) {
	if len(starts) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(starts))
	args := make([]any, 0, len(starts)+1)
	args = append(args, "%"+titleContains+"%")
	for i, t := range starts {
		placeholders[i] = "?"
		args = append(args, t.UTC().Unix())
	}

	query := `SELECT id, title, description, dtstart, dtend, all_day FROM events
		WHERE title LIKE ? AND dtstart IN (` + strings.Join(placeholders, ",") + `) AND all_day = 1
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return events, rows.Err()
}

// EventsByTitleInRange implements Reader with a half-open start window.
func (s *SQLiteStore) EventsByTitleInRange(ctx context.Context, titleContains string, from, to time.Time) ([]engine.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, dtstart, dtend, all_day FROM events
		 WHERE title LIKE ? AND dtstart >= ? AND dtstart < ? AND all_day = 1
		 ORDER BY id`,
		"%"+titleContains+"%", from.UTC().Unix(), to.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return events, rows.Err()
}

// RemindersForEvent implements Reader.
func (s *SQLiteStore) RemindersForEvent(ctx context.Context, eventID int64) ([]engine.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, minutes_before FROM reminders WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var reminders []engine.Reminder
	for rows.Next() {
		var r engine.Reminder
		if err := rows.Scan(&r.ID, &r.MinutesBefore); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// AllEvents implements Reader, with reminders populated for the feed.
func (s *SQLiteStore) AllEvents(ctx context.Context) ([]engine.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, dtstart, dtend, all_day FROM events ORDER BY dtstart, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		reminders, err := s.RemindersForEvent(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Reminders = reminders
	}
	return events, nil
}

// ApplyBatch implements Writer: one transaction, all-or-nothing, with
// reminder back-references resolved through the running result slice.
func (s *SQLiteStore) ApplyBatch(ctx context.Context, b Batch) (results []int64, retErr error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	results = make([]int64, len(b.Ops))
	for i, op := range b.Ops {
		switch op.Kind {
		case OpInsertEvent:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO events (title, description, dtstart, dtend, all_day, timezone)
				 VALUES (?, ?, ?, ?, ?, 'UTC')`,
				op.Event.Title, op.Event.Description,
				op.Event.Start.UTC().Unix(), op.Event.End.UTC().Unix(),
				boolToInt(op.Event.AllDay))
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}
			results[i] = id

		case OpInsertReminder:
			ownerID := results[op.OwnerIndex]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO reminders (event_id, minutes_before) VALUES (?, ?)`,
				ownerID, op.Reminder.MinutesBefore)
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}
			results[i] = id

		case OpUpdateEvent:
			_, err := tx.ExecContext(ctx,
				`UPDATE events SET title = ?, description = ?, dtstart = ?, dtend = ?, all_day = ? WHERE id = ?`,
				op.Event.Title, op.Event.Description,
				op.Event.Start.UTC().Unix(), op.Event.End.UTC().Unix(),
				boolToInt(op.Event.AllDay), op.TargetID)
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}

		case OpDeleteReminder:
			_, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, op.TargetID)
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}

		case OpDeleteEvent:
			_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, op.TargetID)
			if err != nil {
				return nil, fmt.Errorf("%s: op %d: %w", config.ErrStoreApply, i, err)
			}

		default:
			return nil, fmt.Errorf("%s: op %d: unknown kind %s", config.ErrStoreApply, i, op.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreApply, err)
	}
	return results, nil
}

// scanEvents maps event rows to engine values. PersonKey stays empty:
// the store has no person column, the caller tags events with the person
// it queried for.
func scanEvents(rows *sql.Rows) ([]engine.CalendarEvent, error) {
	var events []engine.CalendarEvent
	for rows.Next() {
		var (
			e              engine.CalendarEvent
			dtstart, dtend int64
			allDay         int
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &dtstart, &dtend, &allDay); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreQuery, err)
		}
		e.Start = time.Unix(dtstart, 0).UTC()
		e.End = time.Unix(dtend, 0).UTC()
		e.AllDay = allDay > 0
		e.Year = e.Start.Year()
		events = append(events, e)
	}
	return events, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
