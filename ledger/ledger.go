// Package ledger tracks per-actor busy state keyed by (day, slot).
// Actors are staff or supplier identities; identities must be unique
// across both rosters. Mutation is the only side effect and there is no
// rollback: callers commit a slot only after confirming every required
// actor is simultaneously free.
package ledger

import (
	"forum-scheduler/config"
	"forum-scheduler/models"
)

// Ledger is exclusively owned by the single trial executing it. Trials
// branch with Clone, never by rollback.
type Ledger struct {
	cal  *config.Calendar
	busy map[string]map[models.TimeSlot]struct{}
}

// New returns an empty ledger over the given calendar.
func New(cal *config.Calendar) *Ledger {
	return &Ledger{
		cal:  cal,
		busy: make(map[string]map[models.TimeSlot]struct{}),
	}
}

// SeedRotations marks every rotation block slot busy for the presenting
// supplier. Called once before any request is processed.
func (l *Ledger) SeedRotations(blocks []config.RotationBlock) {
	for _, b := range blocks {
		l.Book(b.Supplier, models.TimeSlot{Day: b.Day, Slot: b.Slot})
	}
}

// Free reports whether the actor can be booked at the timeslot. Blackout
// and unknown slots are never free.
func (l *Ledger) Free(actor string, ts models.TimeSlot) bool {
	if !l.cal.Open(ts) {
		return false
	}
	_, taken := l.busy[actor][ts]
	return !taken
}

// AllFree reports whether every actor is free at every given timeslot.
func (l *Ledger) AllFree(actors []string, slots ...models.TimeSlot) bool {
	for _, ts := range slots {
		for _, a := range actors {
			if !l.Free(a, ts) {
				return false
			}
		}
	}
	return true
}

// Book marks the actor busy at the timeslot.
func (l *Ledger) Book(actor string, ts models.TimeSlot) {
	set, ok := l.busy[actor]
	if !ok {
		set = make(map[models.TimeSlot]struct{})
		l.busy[actor] = set
	}
	set[ts] = struct{}{}
}

// BookAll marks every actor busy at every given timeslot.
func (l *Ledger) BookAll(actors []string, slots ...models.TimeSlot) {
	for _, ts := range slots {
		for _, a := range actors {
			l.Book(a, ts)
		}
	}
}

// Clone returns an independent deep copy sharing only the immutable
// calendar.
func (l *Ledger) Clone() *Ledger {
	c := New(l.cal)
	for actor, set := range l.busy {
		cp := make(map[models.TimeSlot]struct{}, len(set))
		for ts := range set {
			cp[ts] = struct{}{}
		}
		c.busy[actor] = cp
	}
	return c
}
