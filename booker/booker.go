// Package booker places resolved requests into concrete calendar slots.
// One strategy exists per session type; all of them consume the shared
// availability ledger and the opportunity index, and none ever commits a
// partial booking.
package booker

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/ledger"
	"forum-scheduler/models"
	"forum-scheduler/opportunity"
	"forum-scheduler/resolver"
)

// Unfulfillment reasons surfaced in the validation report.
const (
	ReasonCapacity    = "supplier capacity reached"
	ReasonNoWindow    = "no jointly free slot window"
	ReasonNoSlot      = "no jointly free slot"
	ReasonNoCandidate = "no eligible seat candidate"
)

// Booker holds the mutable state of one seed trial. It is never shared
// across trials; branched trials start from Restore on fresh clones.
type Booker struct {
	cfg    *config.Config
	cal    *config.Calendar
	ix     *opportunity.Index
	roster *models.Roster
	led    *ledger.Ledger
	rng    *rand.Rand
	log    *zap.Logger

	fulfilled map[string]int
	bookings  []models.Booking
}

// New returns a booker owning the given per-trial roster and ledger.
func New(cfg *config.Config, cal *config.Calendar, ix *opportunity.Index,
	roster *models.Roster, led *ledger.Ledger, rng *rand.Rand, log *zap.Logger) *Booker {
	return &Booker{
		cfg:       cfg,
		cal:       cal,
		ix:        ix,
		roster:    roster,
		led:       led,
		rng:       rng,
		log:       log,
		fulfilled: make(map[string]int),
	}
}

// Restore preloads the booker with the committed state of a base trial so
// an add-on stage can continue from it. The caller passes clones it owns.
func (b *Booker) Restore(bookings []models.Booking, fulfilled map[string]int) {
	b.bookings = bookings
	b.fulfilled = fulfilled
}

// Bookings returns the committed booking rows.
func (b *Booker) Bookings() []models.Booking {
	return b.bookings
}

// Fulfilled returns a copy of the per-supplier fulfillment counts.
func (b *Booker) Fulfilled() map[string]int {
	out := make(map[string]int, len(b.fulfilled))
	for k, v := range b.fulfilled {
		out[k] = v
	}
	return out
}

// Strategy books every pending paired-session request, Peak suppliers
// first. Paired sessions need two consecutive non-blackout slots on one
// day; candidate windows are shuffled per request to avoid systematic bias
// toward earlier times.
func (b *Booker) Strategy(reqs []*resolver.Request) {
	for _, r := range byTierOrder(reqs, func(r *resolver.Request) bool {
		return r.Source.Type.Paired() && r.State == resolver.StatePending
	}) {
		b.bookPaired(r)
	}
}

// Planning books every pending multi-seat request, Peak suppliers first.
// Candidate staff pairs come from the ranked territory roster, most-ranked
// first, tried against shuffled slot order.
func (b *Booker) Planning(reqs []*resolver.Request) {
	for _, r := range byTierOrder(reqs, func(r *resolver.Request) bool {
		return r.Source.Type == models.SessionPlanning && r.State == resolver.StatePending
	}) {
		b.bookPlanning(r)
	}
}

// PowerPairing books single-seat requests in descending opportunity-value
// order across all suppliers, so the highest-value requests get first pick
// of scarce slots. The configured hard blackout window is excluded
// regardless of general availability, and the slot is chosen uniformly at
// random among all jointly free candidates to spread bookings across the
// day.
func (b *Booker) PowerPairing(reqs []*resolver.Request) {
	var pending []*resolver.Request
	for _, r := range reqs {
		if r.Source.Type == models.SessionPowerPairing && r.State == resolver.StatePending {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Source.Value != pending[j].Source.Value {
			return pending[i].Source.Value > pending[j].Source.Value
		}
		if pending[i].Supplier.Name != pending[j].Supplier.Name {
			return pending[i].Supplier.Name < pending[j].Supplier.Name
		}
		return pending[i].Source.Seq < pending[j].Source.Seq
	})
	for _, r := range pending {
		b.bookPowerPairing(r)
	}
}

// byTierOrder filters requests and orders them Peak first, preserving
// supplier input order and ascending sequence within a supplier.
func byTierOrder(reqs []*resolver.Request, keep func(*resolver.Request) bool) []*resolver.Request {
	var out []*resolver.Request
	for _, r := range reqs {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Supplier.Tier < out[j].Supplier.Tier
	})
	return out
}

func (b *Booker) capacityLeft(r *resolver.Request) bool {
	if b.fulfilled[r.Supplier.Name] >= b.cfg.TierCapacity(r.Supplier.Tier) {
		// Capacity exhaustion is not an error: the request simply goes
		// unfulfilled.
		b.unfulfill(r, ReasonCapacity)
		return false
	}
	return true
}

func (b *Booker) unfulfill(r *resolver.Request, reason string) {
	r.State = resolver.StateUnfulfilled
	r.Reason = reason
	b.log.Debug("request unfulfilled",
		zap.String("supplier", r.Supplier.Name),
		zap.String("category", r.Source.Category),
		zap.String("reason", reason))
}

// commit books every attendee and the supplier into the given slots and
// emits one booking row per slot sharing the attendee list. A fulfilled
// request counts one meeting per attending staff member.
func (b *Booker) commit(r *resolver.Request, staff []string, slots ...models.TimeSlot) {
	actors := append([]string{r.Supplier.Name}, staff...)
	b.led.BookAll(actors, slots...)
	for _, name := range staff {
		if st, ok := b.roster.Lookup(name); ok {
			st.Meetings++
		}
	}
	b.fulfilled[r.Supplier.Name]++
	r.State = resolver.StateBooked
	for _, ts := range slots {
		b.bookings = append(b.bookings, models.Booking{
			Supplier: r.Supplier.Name,
			Booth:    r.Supplier.Booth,
			Day:      ts.Day,
			Slot:     ts.Slot,
			Type:     r.Source.Type,
			Category: r.Source.Category,
			Value:    r.Source.Value,
			Staff:    append([]string(nil), staff...),
		})
	}
}

// seatCandidates returns ranked staff names able to fill a seat: present
// on the roster, not already taken by the request, and under the global
// meeting ceiling.
func (b *Booker) seatCandidates(seat *models.SeatSpec, taken map[string]bool) []string {
	var out []string
	for _, name := range b.ix.Ranked(seat.District, seat.ProductLine) {
		st, ok := b.roster.Lookup(name)
		if !ok || taken[name] {
			continue
		}
		if st.Meetings >= b.cfg.MaxMeetingsPerStaff {
			continue
		}
		out = append(out, name)
	}
	return out
}

// fillSeats resolves every seat placeholder against the ranked candidates,
// requiring each pick to be free across all slots. Returns nil, false when
// any seat cannot be filled; no partial fill is ever returned.
func (b *Booker) fillSeats(seats []*models.SeatSpec, literals []string, slots ...models.TimeSlot) ([]string, bool) {
	taken := make(map[string]bool, len(literals))
	for _, n := range literals {
		taken[n] = true
	}
	var picks []string
	for _, seat := range seats {
		need := seat.Count
		if need <= 0 {
			need = 1
		}
		got := 0
		for _, name := range b.seatCandidates(seat, taken) {
			if !b.led.AllFree([]string{name}, slots...) {
				continue
			}
			taken[name] = true
			picks = append(picks, name)
			got++
			if got == need {
				break
			}
		}
		if got < need {
			return nil, false
		}
	}
	return picks, true
}

// literalsBookable reports whether every literal attendee is on the roster
// and under the meeting ceiling.
func (b *Booker) literalsBookable(names []string) bool {
	for _, n := range names {
		st, ok := b.roster.Lookup(n)
		if !ok || st.Meetings >= b.cfg.MaxMeetingsPerStaff {
			return false
		}
	}
	return true
}

func (b *Booker) bookPaired(r *resolver.Request) {
	if !b.capacityLeft(r) {
		return
	}
	literals := r.Literals()
	seats := r.Seats()
	if len(literals) == 0 && len(seats) == 0 {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}
	if !b.literalsBookable(literals) {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}

	windows := b.cal.Windows()
	b.rng.Shuffle(len(windows), func(i, j int) {
		windows[i], windows[j] = windows[j], windows[i]
	})

	for _, w := range windows {
		slots := []models.TimeSlot{w[0], w[1]}
		if !b.led.AllFree([]string{r.Supplier.Name}, slots...) {
			continue
		}
		if !b.led.AllFree(literals, slots...) {
			continue
		}
		picks, ok := b.fillSeats(seats, literals, slots...)
		if !ok {
			continue
		}
		b.commit(r, append(append([]string(nil), literals...), picks...), slots...)
		return
	}
	b.unfulfill(r, ReasonNoWindow)
}

func (b *Booker) bookPlanning(r *resolver.Request) {
	if !b.capacityLeft(r) {
		return
	}
	literals := r.Literals()
	seats := r.Seats()
	if len(literals) == 0 && len(seats) == 0 {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}
	if !b.literalsBookable(literals) {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}

	slots := b.cal.Slots()
	b.rng.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})

	seatCount := 0
	for _, s := range seats {
		seatCount += s.Count
	}

	if seatCount == 2 && len(seats) == 1 {
		// Ranked pair formation: all unordered pairs, most-ranked first,
		// each tried against the shuffled slot order.
		taken := make(map[string]bool, len(literals))
		for _, n := range literals {
			taken[n] = true
		}
		cands := b.seatCandidates(seats[0], taken)
		for i := 0; i < len(cands); i++ {
			for j := i + 1; j < len(cands); j++ {
				pair := []string{cands[i], cands[j]}
				for _, ts := range slots {
					if !b.led.AllFree([]string{r.Supplier.Name}, ts) {
						continue
					}
					if !b.led.AllFree(literals, ts) || !b.led.AllFree(pair, ts) {
						continue
					}
					b.commit(r, append(append([]string(nil), literals...), pair...), ts)
					return
				}
			}
		}
		b.unfulfill(r, ReasonNoSlot)
		return
	}

	for _, ts := range slots {
		if !b.led.AllFree([]string{r.Supplier.Name}, ts) {
			continue
		}
		if !b.led.AllFree(literals, ts) {
			continue
		}
		picks, ok := b.fillSeats(seats, literals, ts)
		if !ok {
			continue
		}
		b.commit(r, append(append([]string(nil), literals...), picks...), ts)
		return
	}
	b.unfulfill(r, ReasonNoSlot)
}

func (b *Booker) bookPowerPairing(r *resolver.Request) {
	if !b.capacityLeft(r) {
		return
	}
	literals := r.Literals()
	seats := r.Seats()
	if len(literals) == 0 && len(seats) == 0 {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}
	if !b.literalsBookable(literals) {
		b.unfulfill(r, ReasonNoCandidate)
		return
	}

	var slots []models.TimeSlot
	for _, ts := range b.cal.Slots() {
		// Hard policy exclusion, independent of general availability.
		if b.cfg.PowerPairingBlackout.Contains(ts) {
			continue
		}
		slots = append(slots, ts)
	}

	freeFor := func(staff []string) []models.TimeSlot {
		var out []models.TimeSlot
		for _, ts := range slots {
			if !b.led.AllFree([]string{r.Supplier.Name}, ts) {
				continue
			}
			if !b.led.AllFree(literals, ts) {
				continue
			}
			if !b.led.AllFree(staff, ts) {
				continue
			}
			out = append(out, ts)
		}
		return out
	}

	if len(seats) == 0 {
		free := freeFor(nil)
		if len(free) == 0 {
			b.unfulfill(r, ReasonNoSlot)
			return
		}
		ts := free[b.rng.Intn(len(free))]
		b.commit(r, literals, ts)
		return
	}

	taken := make(map[string]bool, len(literals))
	for _, n := range literals {
		taken[n] = true
	}
	for _, name := range b.seatCandidates(seats[0], taken) {
		free := freeFor([]string{name})
		if len(free) == 0 {
			continue
		}
		ts := free[b.rng.Intn(len(free))]
		b.commit(r, append(append([]string(nil), literals...), name), ts)
		return
	}
	b.unfulfill(r, ReasonNoSlot)
}
