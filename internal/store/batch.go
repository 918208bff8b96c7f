package store

import (
	"errors"
	"fmt"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/engine"
)

// OpKind tags one batch operation with its action and entity kind.
type OpKind int

const (
	OpInsertEvent OpKind = iota
	OpInsertReminder
	OpUpdateEvent
	OpDeleteEvent
	OpDeleteReminder
)

// String names the kind for logs.
func (k OpKind) String() string {
	switch k {
	case OpInsertEvent:
		return "insert_event"
	case OpInsertReminder:
		return "insert_reminder"
	case OpUpdateEvent:
		return "update_event"
	case OpDeleteEvent:
		return "delete_event"
	case OpDeleteReminder:
		return "delete_reminder"
	default:
		return fmt.Sprintf("op_kind(%d)", int(k))
	}
}

// NoOwner marks an operation without a back-reference.
const NoOwner = -1

// Operation is one store mutation inside an atomic batch.
//
// A reminder insert cannot carry its owning event's identifier, because
// that identifier is only assigned when the batch commits. It instead
// carries OwnerIndex: the position of the owning event insert within the
// same batch. The store resolves it against its running result list,
// never across batch boundaries.
type Operation struct {
	Kind OpKind

	// Event is the payload for event inserts and updates.
	Event engine.CalendarEvent

	// Reminder is the payload for reminder inserts.
	Reminder engine.Reminder

	// OwnerIndex back-references the event insert this reminder belongs
	// to, or NoOwner.
	OwnerIndex int

	// TargetID is the concrete identifier for updates and deletes.
	TargetID int64
}

// InsertEventOp builds an event insert.
func InsertEventOp(e engine.CalendarEvent) Operation {
	return Operation{Kind: OpInsertEvent, Event: e, OwnerIndex: NoOwner}
}

// InsertReminderOp builds a reminder insert back-referencing the event
// insert at ownerIndex in the same batch.
func InsertReminderOp(r engine.Reminder, ownerIndex int) Operation {
	return Operation{Kind: OpInsertReminder, Reminder: r, OwnerIndex: ownerIndex}
}

// UpdateEventOp builds an event update carrying the new field values.
func UpdateEventOp(e engine.CalendarEvent) Operation {
	return Operation{Kind: OpUpdateEvent, Event: e, OwnerIndex: NoOwner, TargetID: e.ID}
}

// DeleteEventOp builds an event delete.
func DeleteEventOp(id int64) Operation {
	return Operation{Kind: OpDeleteEvent, OwnerIndex: NoOwner, TargetID: id}
}

// DeleteReminderOp builds a reminder delete.
func DeleteReminderOp(id int64) Operation {
	return Operation{Kind: OpDeleteReminder, OwnerIndex: NoOwner, TargetID: id}
}

// Batch is an ordered operation list applied atomically: the store
// commits all of it or none of it.
type Batch struct {
	Ops []Operation
}

// Len returns the operation count.
func (b Batch) Len() int {
	return len(b.Ops)
}

// Validate enforces the back-reference invariant: every reminder insert
// must point at an event insert strictly earlier in this same batch.
func (b Batch) Validate() error {
	for i, op := range b.Ops {
		if op.Kind != OpInsertReminder {
			continue
		}
		if op.OwnerIndex < 0 || op.OwnerIndex >= i {
			return fmt.Errorf("%s: op %d references %d", config.ErrBadBackRef, i, op.OwnerIndex)
		}
		if b.Ops[op.OwnerIndex].Kind != OpInsertEvent {
			return fmt.Errorf("%s: op %d references a %s", config.ErrBadBackRef, i, b.Ops[op.OwnerIndex].Kind)
		}
	}
	return nil
}

// ErrStoreUnavailable marks connectivity or permission failures of the
// calendar store. A sync pass hitting it aborts; already committed
// sub-batches stay valid and the next scheduled run retries wholesale.
var ErrStoreUnavailable = errors.New(config.ErrStoreOpen)
