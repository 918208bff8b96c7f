package engine

import (
	"log/slog"
	"sort"

	"github.com/calorbit/birthday-sync/internal/config"
)

// SyncMode selects how aggressive a reconciliation pass is allowed to be.
type SyncMode int

const (
	// SyncFull reconciles the whole horizon and may delete orphans.
	SyncFull SyncMode = iota
	// SyncNarrow only ensures the desired occurrences exist. It never
	// deletes: a single-person edit must not touch events outside the
	// window it is responsible for.
	SyncNarrow
)

// Plan is the outcome of comparing desired occurrences against the store.
// It is pure data; applying it is the batch builder's job.
type Plan struct {
	// Inserts are fresh events (no identifier) with their reminder
	// template attached.
	Inserts []CalendarEvent
	// Updates carry the existing identifier with the new field values.
	Updates []CalendarEvent
	// Deletes carry existing identifiers, with dependent reminders
	// populated so the store does not retain orphans.
	Deletes []CalendarEvent
}

// Empty reports whether the plan carries no operations. A second run over
// unchanged state must produce an empty plan.
func (p Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Merge appends another plan, preserving order.
func (p *Plan) Merge(other Plan) {
	p.Inserts = append(p.Inserts, other.Inserts...)
	p.Updates = append(p.Updates, other.Updates...)
	p.Deletes = append(p.Deletes, other.Deletes...)
}

// OperationCount is the total number of event-level decisions.
func (p Plan) OperationCount() int {
	return len(p.Inserts) + len(p.Updates) + len(p.Deletes)
}

// Reconcile compares the desired occurrences with the events read back
// from the store and computes the minimal operation set. It is pure:
// no I/O happens here, both inputs are treated as immutable.
//
// Existing events are partitioned by (person, year). When several match
// the same key the earliest-inserted one (lowest identifier) is canonical
// and the rest are queued for deletion, which heals duplicates produced
// by racing runs.
func Reconcile(desired, existing []CalendarEvent, mode SyncMode) Plan {
	byKey := make(map[OccurrenceKey][]CalendarEvent, len(existing))
	for _, e := range existing {
		byKey[e.Key()] = append(byKey[e.Key()], e)
	}

	var plan Plan
	desiredKeys := make(map[OccurrenceKey]struct{}, len(desired))

	for _, want := range desired {
		desiredKeys[want.Key()] = struct{}{}

		matches := byKey[want.Key()]
		if len(matches) == 0 {
			plan.Inserts = append(plan.Inserts, want)
			continue
		}

		canonical, extras := canonicalMatch(matches)
		if len(extras) > 0 {
			slog.Warn(config.MsgDuplicateFound,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyPerson, want.PersonKey,
				config.LogKeyYear, want.Year,
				config.LogKeyCount, len(matches),
			)
			// Duplicate healing deletes rows, so it only happens in a
			// full pass; the narrow pass must emit zero deletes.
			if mode == SyncFull {
				plan.Deletes = append(plan.Deletes, extras...)
			}
		}

		if !canonical.SameContent(want) {
			updated := want
			updated.ID = canonical.ID
			// An event update never rewrites its reminder rows.
			updated.Reminders = nil
			plan.Updates = append(plan.Updates, updated)
		}
	}

	if mode == SyncFull {
		// Orphans: stored events whose (person, year) is no longer wanted.
		orphanKeys := make([]OccurrenceKey, 0, len(byKey))
		for key := range byKey {
			if _, ok := desiredKeys[key]; !ok {
				orphanKeys = append(orphanKeys, key)
			}
		}
		// Map iteration order is random; keep the plan deterministic.
		sort.Slice(orphanKeys, func(i, j int) bool {
			a, b := orphanKeys[i], orphanKeys[j]
			if a.PersonKey != b.PersonKey {
				return a.PersonKey < b.PersonKey
			}
			return a.Year < b.Year
		})
		for _, key := range orphanKeys {
			plan.Deletes = append(plan.Deletes, byKey[key]...)
		}
	}

	return plan
}

// canonicalMatch picks the lowest-identifier event as canonical and
// returns the remainder.
func canonicalMatch(matches []CalendarEvent) (CalendarEvent, []CalendarEvent) {
	if len(matches) == 1 {
		return matches[0], nil
	}
	sorted := make([]CalendarEvent, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted[0], sorted[1:]
}
