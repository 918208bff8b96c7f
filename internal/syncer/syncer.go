package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/directory"
	"github.com/calorbit/birthday-sync/internal/engine"
	"github.com/calorbit/birthday-sync/internal/store"
)

// ErrSyncInProgress is returned when a pass is requested while another is
// still running. Reconciliation is only correct against a consistent
// store snapshot, so passes never overlap.
var ErrSyncInProgress = errors.New(config.ErrSyncInFlight)

// Options carries the configuration values the orchestrator must not
// hard-code: horizon bounds, leap policy, reminder template and the
// atomic-apply size ceiling.
type Options struct {
	Horizon         engine.Horizon
	Policy          engine.LeapPolicy
	ReminderMinutes []int
	BatchCeiling    int

	// NarrowLookahead is how many extra years beyond the next occurrence
	// a SyncOne pass ensures. Zero means only the next occurrence.
	NarrowLookahead int
}

// Stats summarizes one sync pass for logging and tests.
type Stats struct {
	People  int
	Inserts int
	Updates int
	Deletes int
	Batches int
}

// Orchestrator drives full and narrow reconciliation passes: directory →
// expander → reconciler → batch builder → atomic apply.
type Orchestrator struct {
	Directory directory.Directory
	Store     store.Store
	Clock     engine.Clock
	Options   Options

	// mu is the single in-flight sync guard.
	mu sync.Mutex
}

// NewOrchestrator wires an orchestrator with a real clock.
func NewOrchestrator(dir directory.Directory, st store.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		Directory: dir,
		Store:     st,
		Clock:     engine.RealClock{},
		Options:   opts,
	}
}

// SyncAll reconciles the full horizon for every person with a birthday.
// Orphaned and duplicated events inside the horizon are deleted.
func (o *Orchestrator) SyncAll(ctx context.Context) (Stats, error) {
	if !o.mu.TryLock() {
		return Stats{}, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompSyncer, config.LogKeyMode, "full")
	log.InfoContext(ctx, config.MsgSyncStarted)

	people, err := o.Directory.ListPeopleWithBirthday(ctx)
	if err != nil {
		return Stats{}, err
	}

	today := o.Clock.Now()
	var plan engine.Plan

	for _, p := range people {
		personPlan, err := o.planFull(ctx, p, today)
		if err != nil {
			if isSkippable(err) {
				log.Warn(config.MsgSyncSkipped,
					config.LogKeyPerson, p.Key,
					config.LogKeyError, err)
				continue
			}
			return Stats{}, err
		}
		plan.Merge(personPlan)
	}

	stats, err := o.apply(ctx, plan)
	if err != nil {
		return stats, err
	}
	stats.People = len(people)

	log.Info(config.MsgSyncFinished,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyPeople, stats.People),
			slog.Int(config.LogKeyInserts, stats.Inserts),
			slog.Int(config.LogKeyUpdates, stats.Updates),
			slog.Int(config.LogKeyDeletes, stats.Deletes),
			slog.Int(config.LogKeyBatches, stats.Batches),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return stats, nil
}

// SyncOne runs the narrow pass for a single person, used right after a
// birthday is added or edited. It only ensures the next occurrence (plus
// the configured lookahead) exists and never deletes anything: a user
// edit must not touch events outside the window it is responsible for.
func (o *Orchestrator) SyncOne(ctx context.Context, key string) (Stats, error) {
	if !o.mu.TryLock() {
		return Stats{}, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompSyncer,
		config.LogKeyMode, "narrow", config.LogKeyPerson, key)
	log.InfoContext(ctx, config.MsgSyncStarted)

	person, err := o.Directory.GetPerson(ctx, key)
	if err != nil {
		return Stats{}, err
	}
	if !person.HasBirthday() {
		return Stats{}, nil
	}

	today := o.Clock.Now()
	spec := o.expandSpec(person)

	desired := engine.ExpandNext(spec, today, o.Options.NarrowLookahead)
	existing, err := o.readExistingAt(ctx, person, desired)
	if err != nil {
		return Stats{}, err
	}

	plan := engine.Reconcile(desired, existing, engine.SyncNarrow)

	stats, err := o.apply(ctx, plan)
	if err != nil {
		return stats, err
	}
	stats.People = 1

	log.Info(config.MsgSyncFinished,
		config.LogKeyInserts, stats.Inserts,
		config.LogKeyUpdates, stats.Updates,
	)
	return stats, nil
}

// planFull computes one person's full-horizon plan, with delete targets
// carrying their dependent reminders.
func (o *Orchestrator) planFull(ctx context.Context, p directory.Person, today time.Time) (engine.Plan, error) {
	if err := p.Birthday.Validate(); err != nil {
		return engine.Plan{}, err
	}

	spec := o.expandSpec(p)
	desired := engine.Expand(spec, today)

	// The full pass reads the whole horizon window, not just the
	// candidate instants, so manually moved events surface as updates
	// and leftovers as deletions.
	from := engine.UTCMidnight(today.Year()-o.Options.Horizon.Past, time.January, 1)
	to := engine.UTCMidnight(today.Year()+o.Options.Horizon.Future+1, time.January, 1)
	existing, err := o.Store.EventsByTitleInRange(ctx, p.Name, from, to)
	if err != nil {
		return engine.Plan{}, err
	}
	tagPerson(existing, p.Key)

	plan := engine.Reconcile(desired, existing, engine.SyncFull)

	// Deletions must drop dependent reminders too, or the store retains
	// orphaned reminder rows after the event is gone.
	for i := range plan.Deletes {
		reminders, err := o.Store.RemindersForEvent(ctx, plan.Deletes[i].ID)
		if err != nil {
			return engine.Plan{}, err
		}
		plan.Deletes[i].Reminders = reminders
	}
	return plan, nil
}

// readExistingAt queries the store at exactly the desired candidate
// instants (the narrow pass never looks wider than what it ensures).
func (o *Orchestrator) readExistingAt(ctx context.Context, p directory.Person, desired []engine.CalendarEvent) ([]engine.CalendarEvent, error) {
	starts := make([]time.Time, len(desired))
	for i, e := range desired {
		starts[i] = e.Start
	}
	existing, err := o.Store.EventsByTitleAndStarts(ctx, p.Name, starts)
	if err != nil {
		return nil, err
	}
	tagPerson(existing, p.Key)
	return existing, nil
}

// apply builds the sub-batches and submits them sequentially. Each batch
// commits atomically; a failure aborts the pass with already committed
// batches retained, which is safe because a rerun is idempotent.
func (o *Orchestrator) apply(ctx context.Context, plan engine.Plan) (Stats, error) {
	stats := Stats{
		Inserts: len(plan.Inserts),
		Updates: len(plan.Updates),
		Deletes: len(plan.Deletes),
	}
	if plan.Empty() {
		return stats, nil
	}

	batches := BuildBatches(plan, o.Options.BatchCeiling)
	stats.Batches = len(batches)

	slog.Debug(config.MsgBatchBuilt,
		config.LogKeyComponent, config.CompSyncer,
		config.LogKeyBatches, len(batches),
		config.LogKeyOps, plan.OperationCount(),
	)

	for i, batch := range batches {
		// A pass may be aborted between sub-batches; committed ones
		// stay valid on their own.
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if _, err := o.Store.ApplyBatch(ctx, batch); err != nil {
			return stats, fmt.Errorf("%s: batch %d: %w", config.ErrStoreApply, i, err)
		}
		slog.Debug(config.MsgBatchApplied,
			config.LogKeyComponent, config.CompSyncer,
			config.LogKeyBatch, i,
			config.LogKeyOps, batch.Len(),
		)
	}
	return stats, nil
}

// expandSpec assembles the expander input for one person, honoring a
// per-person reminder override when the directory carries one.
func (o *Orchestrator) expandSpec(p directory.Person) engine.ExpandSpec {
	minutes := o.Options.ReminderMinutes
	if len(p.ReminderMinutes) > 0 {
		minutes = p.ReminderMinutes
	}
	reminders := make([]engine.Reminder, len(minutes))
	for i, m := range minutes {
		reminders[i] = engine.Reminder{MinutesBefore: m}
	}
	return engine.ExpandSpec{
		PersonKey: p.Key,
		Name:      p.Name,
		BirthDate: *p.Birthday,
		Horizon:   o.Options.Horizon,
		Policy:    o.Options.Policy,
		Reminders: reminders,
	}
}

// tagPerson stamps store results with the person they were queried for.
// The store itself only knows titles.
func tagPerson(events []engine.CalendarEvent, key string) {
	for i := range events {
		events[i].PersonKey = key
	}
}

// isSkippable classifies per-person failures that must not abort the
// whole pass: only a malformed birth date, never a store failure.
func isSkippable(err error) bool {
	return errors.Is(err, engine.ErrMalformedBirthDate)
}
