// Package resolver turns raw meeting requests into concrete staff
// obligations: literal names, expanded territory references, and deferred
// seat placeholders left for the session bookers to fill against the
// opportunity index.
package resolver

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/models"
	"forum-scheduler/opportunity"
)

// State is the lifecycle of a resolved request within one trial.
type State int

const (
	StatePending State = iota
	StateBooked
	StateUnfulfilled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBooked:
		return "booked"
	case StateUnfulfilled:
		return "unfulfilled"
	default:
		return "unknown"
	}
}

// Request is the per-trial resolved view of a MeetingRequest. Source and
// Supplier are shared immutable inputs; everything else belongs to the
// trial that owns the request.
type Request struct {
	Source      *models.MeetingRequest
	Supplier    *models.Supplier
	Attendees   []models.Attendee
	Unavailable []string
	State       State
	Reason      string
}

// Literals returns the literal attendee names in order.
func (r *Request) Literals() []string {
	var out []string
	for _, a := range r.Attendees {
		if !a.IsSeat() {
			out = append(out, a.Name)
		}
	}
	return out
}

// Seats returns the seat placeholders in order.
func (r *Request) Seats() []*models.SeatSpec {
	var out []*models.SeatSpec
	for _, a := range r.Attendees {
		if a.IsSeat() {
			out = append(out, a.Seat)
		}
	}
	return out
}

// Clone returns a copy safe for independent mutation. Seat specs are
// immutable and stay shared.
func (r *Request) Clone() *Request {
	c := *r
	c.Attendees = append([]models.Attendee(nil), r.Attendees...)
	c.Unavailable = append([]string(nil), r.Unavailable...)
	return &c
}

// CloneAll deep-copies a resolved request list for a branched trial.
func CloneAll(reqs []*Request) []*Request {
	out := make([]*Request, len(reqs))
	for i, r := range reqs {
		out[i] = r.Clone()
	}
	return out
}

// Resolver expands raw attendee tokens. It holds no per-trial state.
type Resolver struct {
	cfg *config.Config
	ix  *opportunity.Index
	log *zap.Logger
}

// New returns a resolver over the given configuration and opportunity
// index.
func New(cfg *config.Config, ix *opportunity.Index, log *zap.Logger) *Resolver {
	return &Resolver{cfg: cfg, ix: ix, log: log}
}

// Resolve expands every request of every supplier and then enforces the
// global per-staff load ceiling. The roster is the calling trial's clone;
// Resolve reads it but never mutates meeting counts.
func (rv *Resolver) Resolve(suppliers []*models.Supplier, roster *models.Roster) []*Request {
	regions := make(map[string]bool)
	segments := make(map[string]bool)
	districts := make(map[string]bool)
	for _, m := range roster.Members {
		regions[m.Region] = true
		segments[m.Segment] = true
		districts[m.District] = true
	}

	var out []*Request
	for _, sup := range suppliers {
		reqs := append([]*models.MeetingRequest(nil), sup.Requests...)
		sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Seq < reqs[j].Seq })

		leaders := make(map[string]bool)
		for _, mr := range reqs {
			req := &Request{Source: mr, Supplier: sup}
			rv.resolveOne(req, roster, regions, segments, districts, leaders)
			out = append(out, req)
		}
	}
	rv.enforceCeiling(out, roster)
	return out
}

func (rv *Resolver) resolveOne(req *Request, roster *models.Roster,
	regions, segments, districts map[string]bool, leaders map[string]bool) {

	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			req.Attendees = append(req.Attendees, models.Literal(name))
		}
	}

	for _, token := range req.Source.RawAttendees {
		tok := strings.TrimSpace(token)
		if tok == "" {
			continue
		}
		if _, ok := roster.Lookup(tok); ok {
			add(tok)
			continue
		}
		district, productLine := splitTerritory(tok)
		if rv.ix.HasDistrict(district) || districts[district] {
			rv.expandTerritory(req, district, productLine, roster, leaders, seen)
			continue
		}
		if regions[tok] || segments[tok] {
			if st := rv.expandLegacy(tok, roster, seen); st != nil {
				add(st.Name)
			} else {
				req.Unavailable = append(req.Unavailable, tok)
				rv.log.Warn("no candidate for territory token",
					zap.String("supplier", req.Supplier.Name),
					zap.String("token", tok))
			}
			continue
		}
		// Unresolvable attendee: recorded, never fatal.
		req.Unavailable = append(req.Unavailable, tok)
		rv.log.Warn("unresolvable attendee",
			zap.String("supplier", req.Supplier.Name),
			zap.String("token", tok))
	}
}

// splitTerritory splits a "district/product line" token. A bare district
// token yields an empty product line.
func splitTerritory(tok string) (district, productLine string) {
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		return strings.TrimSpace(tok[:i]), strings.TrimSpace(tok[i+1:])
	}
	return tok, ""
}

// expandTerritory expands a district reference per session type. Paired
// sessions get a leadership literal (one unique pick per supplier) plus a
// seat; planning gets a two-seat placeholder so the booker can form ranked
// pairs; power-pairing gets a single seat.
func (rv *Resolver) expandTerritory(req *Request, district, productLine string,
	roster *models.Roster, leaders map[string]bool, seen map[string]bool) {

	switch req.Source.Type {
	case models.SessionPlanning:
		req.Attendees = append(req.Attendees, models.Seat(district, productLine, 2))
	case models.SessionPowerPairing:
		req.Attendees = append(req.Attendees, models.Seat(district, productLine, 1))
	default:
		if lead := districtLead(roster, district, leaders, seen); lead != nil {
			leaders[lead.Name] = true
			seen[lead.Name] = true
			req.Attendees = append(req.Attendees, models.Literal(lead.Name))
		}
		req.Attendees = append(req.Attendees, models.Seat(district, productLine, 1))
	}
}

// districtLead picks the highest-weight staff member in the district not
// yet used as a lead by this supplier. Name order breaks weight ties.
func districtLead(roster *models.Roster, district string, leaders, seen map[string]bool) *models.Staff {
	var pool []*models.Staff
	for _, m := range roster.Members {
		if m.District == district && !leaders[m.Name] && !seen[m.Name] {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Weight != pool[j].Weight {
			return pool[i].Weight > pool[j].Weight
		}
		return pool[i].Name < pool[j].Name
	})
	return pool[0]
}

// expandLegacy handles the legacy bare region/segment token form: the
// natural pick is the highest-weight member of the matching pool, with the
// weight-tiered fallback chain covering collisions within the request.
func (rv *Resolver) expandLegacy(token string, roster *models.Roster, seen map[string]bool) *models.Staff {
	var pool []*models.Staff
	for _, m := range roster.Members {
		if m.Region == token || m.Segment == token {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Weight != pool[j].Weight {
			return pool[i].Weight > pool[j].Weight
		}
		return pool[i].Name < pool[j].Name
	})
	natural := pool[0]
	if !seen[natural.Name] {
		return natural
	}
	return rv.fallback(natural, roster, func(m *models.Staff) bool {
		return !seen[m.Name]
	})
}

// fallback walks the weight-tiered substitution chain for st: a weight-3
// role recovers via a same-segment weight-1 substitute, weight-2 via a
// same-region weight-1 substitute, weight-1 via another same-region
// weight-1 member. The chain never escalates upward in weight, and only
// crosses regions when the policy toggle allows it.
func (rv *Resolver) fallback(st *models.Staff, roster *models.Roster, usable func(*models.Staff) bool) *models.Staff {
	for _, m := range roster.Members {
		if m.Name == st.Name || m.Weight != 1 {
			continue
		}
		if st.Weight >= 3 {
			if m.Segment != st.Segment {
				continue
			}
		} else if m.Region != st.Region {
			continue
		}
		if usable(m) {
			return m
		}
	}
	if rv.cfg.CrossRegionFallback {
		for _, m := range roster.Members {
			if m.Name != st.Name && m.Weight == 1 && usable(m) {
				return m
			}
		}
	}
	return nil
}

// enforceCeiling is the second resolution pass: any resolved name whose
// running global count exceeds the per-staff ceiling is replaced via the
// fallback chain, visiting lower-tier suppliers first and each supplier's
// highest-numbered request first. Replaced and dropped names land in the
// request's unavailable record.
func (rv *Resolver) enforceCeiling(reqs []*Request, roster *models.Roster) {
	ceiling := rv.cfg.MaxMeetingsPerStaff

	counts := make(map[string]int)
	for _, r := range reqs {
		for _, a := range r.Attendees {
			if !a.IsSeat() {
				counts[a.Name]++
			}
		}
	}

	visit := append([]*Request(nil), reqs...)
	sort.SliceStable(visit, func(i, j int) bool {
		if visit[i].Supplier.Tier != visit[j].Supplier.Tier {
			return visit[i].Supplier.Tier > visit[j].Supplier.Tier
		}
		if visit[i].Supplier == visit[j].Supplier {
			return visit[i].Source.Seq > visit[j].Source.Seq
		}
		return false
	})

	for _, r := range visit {
		inReq := make(map[string]bool)
		for _, a := range r.Attendees {
			if !a.IsSeat() {
				inReq[a.Name] = true
			}
		}
		var kept []models.Attendee
		for _, a := range r.Attendees {
			if a.IsSeat() || counts[a.Name] <= ceiling {
				kept = append(kept, a)
				continue
			}
			st, ok := roster.Lookup(a.Name)
			counts[a.Name]--
			delete(inReq, a.Name)
			r.Unavailable = append(r.Unavailable, a.Name)
			if !ok {
				continue
			}
			sub := rv.fallback(st, roster, func(m *models.Staff) bool {
				return !inReq[m.Name] && counts[m.Name] < ceiling
			})
			if sub == nil {
				rv.log.Warn("over-limit attendee dropped",
					zap.String("supplier", r.Supplier.Name),
					zap.String("name", a.Name))
				continue
			}
			counts[sub.Name]++
			inReq[sub.Name] = true
			kept = append(kept, models.Literal(sub.Name))
		}
		r.Attendees = kept
	}
}
