package models

import (
	"fmt"
	"strings"

	"forum-scheduler/errors"
)

// Tier classifies a supplier and selects its meeting-capacity ceiling.
type Tier int

const (
	TierPeak Tier = iota
	TierAccelerating
)

func (t Tier) String() string {
	switch t {
	case TierPeak:
		return "Peak"
	case TierAccelerating:
		return "Accelerating"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier maps an input token to a Tier. Matching is case-insensitive.
func ParseTier(token string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "peak":
		return TierPeak, nil
	case "accelerating":
		return TierAccelerating, nil
	default:
		return 0, fmt.Errorf("%w: %q", errors.ErrUnknownTier, token)
	}
}

// SessionType identifies the booking strategy a meeting request uses.
type SessionType int

const (
	// SessionStrategy is a paired session occupying two consecutive slots.
	SessionStrategy SessionType = iota
	// SessionPlanning is a single-slot session seating a staff pair.
	SessionPlanning
	// SessionPowerPairing is a single-seat, single-slot session with a
	// hard blackout window.
	SessionPowerPairing
	// SessionTerritory is a paired seat-spec session booked like a
	// strategy session but resolved entirely from opportunity rankings.
	SessionTerritory
	// SessionRotation marks booking rows emitted by the rotating
	// presentation filler. It is never a valid request type on input.
	SessionRotation
)

func (s SessionType) String() string {
	switch s {
	case SessionStrategy:
		return "strategy"
	case SessionPlanning:
		return "planning"
	case SessionPowerPairing:
		return "power-pairing"
	case SessionTerritory:
		return "territory"
	case SessionRotation:
		return "rotation"
	default:
		return fmt.Sprintf("SessionType(%d)", int(s))
	}
}

// Paired reports whether the session occupies two consecutive slots.
func (s SessionType) Paired() bool {
	return s == SessionStrategy || s == SessionTerritory
}

// ParseSessionType maps an input token to a SessionType. An unrecognized
// token is a structural contract violation and yields
// errors.ErrUnknownSessionType, which callers must treat as fatal.
func ParseSessionType(token string) (SessionType, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "strategy":
		return SessionStrategy, nil
	case "planning":
		return SessionPlanning, nil
	case "power-pairing", "powerpairing":
		return SessionPowerPairing, nil
	case "territory":
		return SessionTerritory, nil
	default:
		return 0, fmt.Errorf("%w: %q", errors.ErrUnknownSessionType, token)
	}
}

// Staff is one roster member. Meetings is the only field mutated during a
// run; every seed trial works on its own roster clone.
type Staff struct {
	Name     string
	Region   string
	Segment  string
	District string
	Weight   int
	Rotation bool
	Meetings int
}

// Roster holds the staff loaded for one event, with name lookup.
type Roster struct {
	Members []*Staff
	byName  map[string]*Staff
}

// NewRoster builds a roster from loaded staff records. Later duplicates of
// a name are dropped.
func NewRoster(members []Staff) *Roster {
	r := &Roster{byName: make(map[string]*Staff, len(members))}
	for i := range members {
		m := members[i]
		if _, ok := r.byName[m.Name]; ok {
			continue
		}
		s := &m
		r.Members = append(r.Members, s)
		r.byName[m.Name] = s
	}
	return r
}

// Lookup returns the staff member with the given name, if any.
func (r *Roster) Lookup(name string) (*Staff, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Clone returns a deep copy. Trials mutate meeting counts on their own
// clone only.
func (r *Roster) Clone() *Roster {
	c := &Roster{
		Members: make([]*Staff, len(r.Members)),
		byName:  make(map[string]*Staff, len(r.Members)),
	}
	for i, m := range r.Members {
		cp := *m
		c.Members[i] = &cp
		c.byName[cp.Name] = &cp
	}
	return c
}

// Supplier is an event supplier with its ordered meeting requests.
// Immutable once loaded.
type Supplier struct {
	Name     string
	Tier     Tier
	Booth    string
	Requests []*MeetingRequest
}

// MeetingRequest is a raw request as delivered by the ingestion layer.
// RawAttendees mixes literal staff names with territory tokens; a
// territory token is either a district name or "district/product line".
type MeetingRequest struct {
	Supplier     string
	Seq          int
	Type         SessionType
	Category     string
	Value        float64
	RawAttendees []string
}

// SeatSpec is an unresolved attendee slot tied to a territory. It is
// resolved against the opportunity index at booking time, never earlier,
// because the best-ranked eligible staff member changes as capacity fills.
type SeatSpec struct {
	District    string
	ProductLine string
	Count       int
}

// Attendee is the tagged variant of a resolved attendee: either a literal
// staff name or a deferred seat placeholder.
type Attendee struct {
	Name string
	Seat *SeatSpec
}

// Literal returns a concrete-name attendee.
func Literal(name string) Attendee {
	return Attendee{Name: name}
}

// Seat returns a deferred seat placeholder.
func Seat(district, productLine string, count int) Attendee {
	return Attendee{Seat: &SeatSpec{District: district, ProductLine: productLine, Count: count}}
}

// IsSeat reports whether the attendee is an unresolved placeholder.
func (a Attendee) IsSeat() bool {
	return a.Seat != nil
}

// TimeSlot is a (day, time label) pair.
type TimeSlot struct {
	Day  string
	Slot string
}

func (t TimeSlot) String() string {
	return t.Day + " " + t.Slot
}

// Booking is the output unit: one row per occupied slot. A paired session
// emits one row per slot, all sharing the same attendee list.
type Booking struct {
	Supplier string
	Booth    string
	Day      string
	Slot     string
	Type     SessionType
	Category string
	Value    float64
	Staff    []string
}

// SupplierSummary aggregates a supplier's requested, fulfilled and
// unfulfilled categories, plus the substitution trail of names that were
// originally requested but replaced or dropped.
type SupplierSummary struct {
	Supplier      string
	Requested     []string
	Fulfilled     []string
	Unfulfilled   []string
	Substitutions map[string][]string
}
