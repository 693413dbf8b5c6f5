// Package rotation fills the fixed rotating presentation sessions. Every
// eligible staff member is guaranteed at least one session (Pass A); an
// optional top-up (Pass B) sweeps remaining capacity afterwards.
package rotation

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/ledger"
	"forum-scheduler/models"
)

// Session is one merged presentation session: consecutive identical-
// supplier blocks within a day collapse into a single multi-slot session
// with a fixed attendance capacity.
type Session struct {
	Supplier string
	Day      string
	Slots    []string
	Capacity int
	Staff    []string
}

// TimeSlots returns the session's slots as (day, slot) pairs.
func (s *Session) TimeSlots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(s.Slots))
	for i, sl := range s.Slots {
		out[i] = models.TimeSlot{Day: s.Day, Slot: sl}
	}
	return out
}

// Full reports whether the session has reached capacity.
func (s *Session) Full() bool {
	return len(s.Staff) >= s.Capacity
}

// BuildSessions derives the session list from the configured block table,
// walking days in calendar order and merging runs of consecutive slots
// held by the same supplier.
func BuildSessions(cfg *config.Config) []*Session {
	type key struct{ day, slot string }
	blocks := make(map[key]string, len(cfg.RotationBlocks))
	for _, b := range cfg.RotationBlocks {
		blocks[key{b.Day, b.Slot}] = b.Supplier
	}

	var sessions []*Session
	for _, d := range cfg.Days {
		var cur *Session
		for _, s := range d.Slots {
			sup, ok := blocks[key{d.Name, s.Label}]
			if !ok {
				cur = nil
				continue
			}
			if cur != nil && cur.Supplier == sup {
				cur.Slots = append(cur.Slots, s.Label)
				continue
			}
			cur = &Session{
				Supplier: sup,
				Day:      d.Name,
				Slots:    []string{s.Label},
				Capacity: cfg.RotationCapacity,
			}
			sessions = append(sessions, cur)
		}
	}
	return sessions
}

// Filler assigns staff to sessions, tracking per-staff assignment counts
// across both passes.
type Filler struct {
	cfg    *config.Config
	log    *zap.Logger
	counts map[string]int
}

// NewFiller returns a filler with empty assignment counts.
func NewFiller(cfg *config.Config, log *zap.Logger) *Filler {
	return &Filler{cfg: cfg, log: log, counts: make(map[string]int)}
}

// Assign is Pass A: staff and sessions are each shuffled, then staff are
// round-robin matched to the next session with free capacity and free
// availability across all its slots. A staff member who cannot be placed
// anywhere is reported as a warning, not a fatal error.
func (f *Filler) Assign(sessions []*Session, roster *models.Roster, led *ledger.Ledger, rng *rand.Rand) []string {
	var eligible []*models.Staff
	for _, m := range roster.Members {
		if m.Rotation {
			eligible = append(eligible, m)
		}
	}
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	order := make([]*Session, len(sessions))
	copy(order, sessions)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var warnings []string
	next := 0
	for _, st := range eligible {
		placed := false
		for tries := 0; tries < len(order); tries++ {
			s := order[next%len(order)]
			next++
			if s.Full() {
				continue
			}
			slots := s.TimeSlots()
			if !led.AllFree([]string{st.Name}, slots...) {
				continue
			}
			s.Staff = append(s.Staff, st.Name)
			led.BookAll([]string{st.Name}, slots...)
			f.counts[st.Name]++
			placed = true
			break
		}
		if !placed {
			w := fmt.Sprintf("no presentation session available for %s", st.Name)
			warnings = append(warnings, w)
			f.log.Warn("staff member left without presentation session",
				zap.String("staff", st.Name))
		}
	}
	return warnings
}

// TopUp is Pass B: repeated sweeps over sessions under capacity, assigning
// any still-eligible, still-available staff member whose assignment count
// from prior rounds does not exceed the current round number, until a full
// sweep makes no progress. Returns the number of assignments added.
func (f *Filler) TopUp(sessions []*Session, roster *models.Roster, led *ledger.Ledger) int {
	var eligible []*models.Staff
	for _, m := range roster.Members {
		if m.Rotation {
			eligible = append(eligible, m)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Name < eligible[j].Name
	})

	added := 0
	for round := 1; ; round++ {
		progress := false
		for _, s := range sessions {
			if s.Full() {
				continue
			}
			inSession := make(map[string]bool, len(s.Staff))
			for _, n := range s.Staff {
				inSession[n] = true
			}
			slots := s.TimeSlots()
			for _, st := range eligible {
				if s.Full() {
					break
				}
				if inSession[st.Name] || f.counts[st.Name] > round {
					continue
				}
				if !led.AllFree([]string{st.Name}, slots...) {
					continue
				}
				s.Staff = append(s.Staff, st.Name)
				inSession[st.Name] = true
				led.BookAll([]string{st.Name}, slots...)
				f.counts[st.Name]++
				added++
				progress = true
			}
		}
		if !progress {
			return added
		}
	}
}

// Bookings converts the filled sessions into booking rows, one per
// occupied slot, so downstream schedules include presentation duty.
// Rotation rows carry no opportunity value and do not count toward
// meeting ceilings.
func Bookings(sessions []*Session, suppliers []*models.Supplier) []models.Booking {
	booths := make(map[string]string, len(suppliers))
	for _, s := range suppliers {
		booths[s.Name] = s.Booth
	}
	var out []models.Booking
	for _, s := range sessions {
		if len(s.Staff) == 0 {
			continue
		}
		for _, slot := range s.Slots {
			out = append(out, models.Booking{
				Supplier: s.Supplier,
				Booth:    booths[s.Supplier],
				Day:      s.Day,
				Slot:     slot,
				Type:     models.SessionRotation,
				Category: "Rotation",
				Staff:    append([]string(nil), s.Staff...),
			})
		}
	}
	return out
}
