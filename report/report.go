// Package report aggregates per-supplier fulfillment results and the
// validation detail consumed by the display layer.
package report

import (
	"sort"

	"forum-scheduler/models"
	"forum-scheduler/resolver"
)

// Engagement is one existing commitment of a resolved attendee, shown so
// downstream display can explain why a request could not be placed.
type Engagement struct {
	Day      string `json:"day"`
	Slot     string `json:"slot"`
	Supplier string `json:"supplier"`
}

// UnfulfilledDetail describes one unfulfilled request with its resolved
// attendees and their current bookings.
type UnfulfilledDetail struct {
	Supplier  string                  `json:"supplier"`
	Category  string                  `json:"category"`
	Session   string                  `json:"session"`
	Reason    string                  `json:"reason"`
	Attendees []string                `json:"attendees"`
	Schedules map[string][]Engagement `json:"schedules,omitempty"`
}

// SupplierCounts is the per-supplier requested/fulfilled/unfulfilled
// tally.
type SupplierCounts struct {
	Supplier    string `json:"supplier"`
	Tier        string `json:"tier"`
	Requested   int    `json:"requested"`
	Fulfilled   int    `json:"fulfilled"`
	Unfulfilled int    `json:"unfulfilled"`
}

// Validation is the cross-referenced summary for the selected best run.
type Validation struct {
	RunID             string              `json:"run_id"`
	TotalRequested    int                 `json:"total_requested"`
	TotalFulfilled    int                 `json:"total_fulfilled"`
	TotalUnfulfilled  int                 `json:"total_unfulfilled"`
	SuppliersAffected int                 `json:"suppliers_affected"`
	Suppliers         []SupplierCounts    `json:"suppliers"`
	Unfulfilled       []UnfulfilledDetail `json:"unfulfilled,omitempty"`
}

// BuildSummaries produces the per-supplier summary map: requested,
// fulfilled and unfulfilled category lists plus the substitution trail.
func BuildSummaries(reqs []*resolver.Request) map[string]*models.SupplierSummary {
	out := make(map[string]*models.SupplierSummary)
	for _, r := range reqs {
		s, ok := out[r.Supplier.Name]
		if !ok {
			s = &models.SupplierSummary{
				Supplier:      r.Supplier.Name,
				Substitutions: make(map[string][]string),
			}
			out[r.Supplier.Name] = s
		}
		cat := r.Source.Category
		s.Requested = append(s.Requested, cat)
		if r.State == resolver.StateBooked {
			s.Fulfilled = append(s.Fulfilled, cat)
		} else {
			s.Unfulfilled = append(s.Unfulfilled, cat)
		}
		if len(r.Unavailable) > 0 {
			s.Substitutions[cat] = append(s.Substitutions[cat], r.Unavailable...)
		}
	}
	return out
}

// Build assembles the validation report for the selected best run.
func Build(runID string, reqs []*resolver.Request, bookings []models.Booking) *Validation {
	v := &Validation{RunID: runID}

	byStaff := make(map[string][]Engagement)
	for _, b := range bookings {
		for _, n := range b.Staff {
			byStaff[n] = append(byStaff[n], Engagement{Day: b.Day, Slot: b.Slot, Supplier: b.Supplier})
		}
	}

	counts := make(map[string]*SupplierCounts)
	var order []string
	for _, r := range reqs {
		c, ok := counts[r.Supplier.Name]
		if !ok {
			c = &SupplierCounts{Supplier: r.Supplier.Name, Tier: r.Supplier.Tier.String()}
			counts[r.Supplier.Name] = c
			order = append(order, r.Supplier.Name)
		}
		c.Requested++
		v.TotalRequested++
		if r.State == resolver.StateBooked {
			c.Fulfilled++
			v.TotalFulfilled++
			continue
		}
		c.Unfulfilled++
		v.TotalUnfulfilled++

		attendees := r.Literals()
		detail := UnfulfilledDetail{
			Supplier:  r.Supplier.Name,
			Category:  r.Source.Category,
			Session:   r.Source.Type.String(),
			Reason:    r.Reason,
			Attendees: attendees,
		}
		for _, n := range attendees {
			if eng := byStaff[n]; len(eng) > 0 {
				if detail.Schedules == nil {
					detail.Schedules = make(map[string][]Engagement)
				}
				detail.Schedules[n] = eng
			}
		}
		v.Unfulfilled = append(v.Unfulfilled, detail)
	}

	sort.Strings(order)
	for _, name := range order {
		c := counts[name]
		v.Suppliers = append(v.Suppliers, *c)
		if c.Unfulfilled > 0 {
			v.SuppliersAffected++
		}
	}
	return v
}
