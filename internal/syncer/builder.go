package syncer

import (
	"github.com/calorbit/birthday-sync/internal/engine"
	"github.com/calorbit/birthday-sync/internal/store"
)

// opUnit is an indivisible run of operations: an event insert with its
// reminder inserts, or an event delete preceded by its reminder deletes.
// A unit never straddles a sub-batch boundary, because a reminder insert
// may only back-reference an event insert in the same batch. Reminder
// back-references inside a unit are relative until placement.
type opUnit []store.Operation

// BuildBatches translates a reconciliation plan into atomic batches.
// A sub-batch closes once it has reached the ceiling; because units are
// indivisible, the last unit placed may run past it by up to one unit.
//
// Placement fixes up each reminder insert's OwnerIndex from its relative
// offset within the unit to the absolute position of the owning event
// insert in the target batch; the position counter restarts at zero for
// every new sub-batch.
func BuildBatches(plan engine.Plan, ceiling int) []store.Batch {
	units := make([]opUnit, 0, plan.OperationCount())

	for _, e := range plan.Inserts {
		unit := opUnit{store.InsertEventOp(e)}
		for _, r := range e.Reminders {
			// Relative to the unit start; placement rebases it.
			unit = append(unit, store.InsertReminderOp(r, 0))
		}
		units = append(units, unit)
	}

	for _, e := range plan.Updates {
		units = append(units, opUnit{store.UpdateEventOp(e)})
	}

	for _, e := range plan.Deletes {
		unit := make(opUnit, 0, len(e.Reminders)+1)
		// Reminders go first so stores enforcing referential integrity
		// never see a dangling reminder row.
		for _, r := range e.Reminders {
			unit = append(unit, store.DeleteReminderOp(r.ID))
		}
		unit = append(unit, store.DeleteEventOp(e.ID))
		units = append(units, unit)
	}

	return placeUnits(units, ceiling)
}

// placeUnits packs units into batches, closing a batch once it reached
// the ceiling.
func placeUnits(units []opUnit, ceiling int) []store.Batch {
	var batches []store.Batch
	var current store.Batch

	for _, unit := range units {
		if current.Len() >= ceiling {
			batches = append(batches, current)
			current = store.Batch{}
		}
		base := current.Len()
		for _, op := range unit {
			if op.Kind == store.OpInsertReminder {
				op.OwnerIndex = base
			}
			current.Ops = append(current.Ops, op)
		}
	}

	if current.Len() > 0 {
		batches = append(batches, current)
	}
	return batches
}
