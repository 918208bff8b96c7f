package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calorbit/birthday-sync/internal/engine"
	"github.com/calorbit/birthday-sync/internal/store"
)

func insertable(person string, year int, reminders int) engine.CalendarEvent {
	start := engine.UTCMidnight(year, time.July, 4)
	e := engine.CalendarEvent{
		PersonKey: person,
		Year:      year,
		Title:     "Birthday: " + person,
		Start:     start,
		End:       start.AddDate(0, 0, 1),
		AllDay:    true,
	}
	for i := 0; i < reminders; i++ {
		e.Reminders = append(e.Reminders, engine.Reminder{MinutesBefore: i * 1440})
	}
	return e
}

func TestBuildBatches_BackReferenceIntegrity(t *testing.T) {
	// 3 events with 2 reminders each: 9 operations where every reminder
	// insert back-references exactly its own event's position.
	plan := engine.Plan{
		Inserts: []engine.CalendarEvent{
			insertable("a", 2024, 2),
			insertable("b", 2024, 2),
			insertable("c", 2024, 2),
		},
	}

	batches := BuildBatches(plan, 100)
	require.Len(t, batches, 1)

	batch := batches[0]
	require.Equal(t, 9, batch.Len())
	require.NoError(t, batch.Validate())

	for i := 0; i < 9; i += 3 {
		assert.Equal(t, store.OpInsertEvent, batch.Ops[i].Kind)
		assert.Equal(t, store.OpInsertReminder, batch.Ops[i+1].Kind)
		assert.Equal(t, store.OpInsertReminder, batch.Ops[i+2].Kind)
		assert.Equal(t, i, batch.Ops[i+1].OwnerIndex)
		assert.Equal(t, i, batch.Ops[i+2].OwnerIndex)
	}
}

func TestBuildBatches_CeilingSplitKeepsUnitsWhole(t *testing.T) {
	// Ceiling 5 fits two 3-op units per batch; the third event and its
	// reminders defer to the second sub-batch as one unit, with the
	// back-reference counter reset to zero.
	plan := engine.Plan{
		Inserts: []engine.CalendarEvent{
			insertable("a", 2024, 2),
			insertable("b", 2024, 2),
			insertable("c", 2024, 2),
		},
	}

	batches := BuildBatches(plan, 5)
	require.Len(t, batches, 2)

	// The first two units close the batch at 6 operations (the second
	// unit may run past the ceiling since units are indivisible); the
	// third event and its reminders defer whole to the next sub-batch.
	assert.Equal(t, 6, batches[0].Len())
	assert.Equal(t, 3, batches[1].Len())

	for _, b := range batches {
		require.NoError(t, b.Validate())
	}

	// The second batch restarts positions at zero.
	assert.Equal(t, store.OpInsertEvent, batches[1].Ops[0].Kind)
	assert.Equal(t, 0, batches[1].Ops[1].OwnerIndex)
	assert.Equal(t, 0, batches[1].Ops[2].OwnerIndex)
}

func TestBuildBatches_DeleteOrdering(t *testing.T) {
	// Reminder deletes precede their owning event's delete so a store
	// enforcing referential integrity never sees a dangling reminder.
	plan := engine.Plan{
		Deletes: []engine.CalendarEvent{
			{ID: 10, Reminders: []engine.Reminder{{ID: 100}, {ID: 101}}},
		},
	}

	batches := BuildBatches(plan, 100)
	require.Len(t, batches, 1)
	ops := batches[0].Ops
	require.Len(t, ops, 3)

	assert.Equal(t, store.OpDeleteReminder, ops[0].Kind)
	assert.Equal(t, int64(100), ops[0].TargetID)
	assert.Equal(t, store.OpDeleteReminder, ops[1].Kind)
	assert.Equal(t, int64(101), ops[1].TargetID)
	assert.Equal(t, store.OpDeleteEvent, ops[2].Kind)
	assert.Equal(t, int64(10), ops[2].TargetID)
}

func TestBuildBatches_MixedPlanOrder(t *testing.T) {
	update := insertable("a", 2023, 0)
	update.ID = 7

	plan := engine.Plan{
		Inserts: []engine.CalendarEvent{insertable("a", 2024, 1)},
		Updates: []engine.CalendarEvent{update},
		Deletes: []engine.CalendarEvent{{ID: 9}},
	}

	batches := BuildBatches(plan, 100)
	require.Len(t, batches, 1)
	ops := batches[0].Ops
	require.Len(t, ops, 4)

	assert.Equal(t, store.OpInsertEvent, ops[0].Kind)
	assert.Equal(t, store.OpInsertReminder, ops[1].Kind)
	assert.Equal(t, store.OpUpdateEvent, ops[2].Kind)
	assert.Equal(t, int64(7), ops[2].TargetID)
	assert.Equal(t, store.OpDeleteEvent, ops[3].Kind)
}

func TestBuildBatches_OversizedUnitStaysWhole(t *testing.T) {
	// A unit larger than the ceiling is never torn apart.
	plan := engine.Plan{
		Inserts: []engine.CalendarEvent{
			insertable("b", 2024, 4), // 5 ops > ceiling 3
		},
	}

	batches := BuildBatches(plan, 3)
	require.Len(t, batches, 1)
	assert.Equal(t, 5, batches[0].Len())
	require.NoError(t, batches[0].Validate())
}

func TestBuildBatches_EmptyPlan(t *testing.T) {
	assert.Empty(t, BuildBatches(engine.Plan{}, 10))
}
