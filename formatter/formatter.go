// Package formatter renders a selected schedule as text, JSON, or CSV.
// The text form mirrors the event handouts: one section per supplier and
// one per staff member.
package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"forum-scheduler/config"
	"forum-scheduler/engine"
	"forum-scheduler/models"
	"forum-scheduler/report"
)

// scheduleData holds prepared schedule data used by all formatters.
type scheduleData struct {
	res      *engine.Result
	cal      *config.Calendar
	bySup    map[string][]models.Booking
	byStaff  map[string][]models.Booking
	supOrder []string
	stOrder  []string
}

func prepare(res *engine.Result, cal *config.Calendar) *scheduleData {
	d := &scheduleData{
		res:     res,
		cal:     cal,
		bySup:   make(map[string][]models.Booking),
		byStaff: make(map[string][]models.Booking),
	}
	for _, b := range res.Bookings {
		if _, ok := d.bySup[b.Supplier]; !ok {
			d.supOrder = append(d.supOrder, b.Supplier)
		}
		d.bySup[b.Supplier] = append(d.bySup[b.Supplier], b)
		for _, n := range b.Staff {
			if _, ok := d.byStaff[n]; !ok {
				d.stOrder = append(d.stOrder, n)
			}
			d.byStaff[n] = append(d.byStaff[n], b)
		}
	}
	sort.Strings(d.supOrder)
	sort.Strings(d.stOrder)
	for _, rows := range d.byStaff {
		sort.SliceStable(rows, func(i, j int) bool {
			oi := cal.Order(models.TimeSlot{Day: rows[i].Day, Slot: rows[i].Slot})
			oj := cal.Order(models.TimeSlot{Day: rows[j].Day, Slot: rows[j].Slot})
			return oi < oj
		})
	}
	return d
}

// FormatText returns the human-readable schedule report.
func FormatText(res *engine.Result, cal *config.Calendar) string {
	d := prepare(res, cal)
	var sb strings.Builder

	fmt.Fprintf(&sb, "Supplier Growth Forum Schedule\n")
	fmt.Fprintf(&sb, "Run %s (base seed %d, add-on seed %d)\n\n",
		res.RunID, res.BaseSeed, res.AddOnSeed)

	sb.WriteString("=== Supplier Schedules ===\n")
	for _, sup := range d.supOrder {
		rows := d.bySup[sup]
		fmt.Fprintf(&sb, "\n%s (Booth %s)\n", sup, rows[0].Booth)
		for _, b := range rows {
			fmt.Fprintf(&sb, "  %-8s %-8s %-13s %-20s %s\n",
				b.Day, b.Slot, b.Type, b.Category, strings.Join(b.Staff, ", "))
		}
	}

	sb.WriteString("\n=== Staff Schedules ===\n")
	for _, name := range d.stOrder {
		fmt.Fprintf(&sb, "\n%s\n", name)
		for _, b := range d.byStaff[name] {
			fmt.Fprintf(&sb, "  %-8s %-8s %s (Booth %s)\n", b.Day, b.Slot, b.Supplier, b.Booth)
		}
	}

	sb.WriteString("\n=== Summary ===\n")
	var supNames []string
	for name := range res.Summaries {
		supNames = append(supNames, name)
	}
	sort.Strings(supNames)
	for _, name := range supNames {
		s := res.Summaries[name]
		fmt.Fprintf(&sb, "\n%s: %d requested, %d fulfilled, %d unfulfilled\n",
			s.Supplier, len(s.Requested), len(s.Fulfilled), len(s.Unfulfilled))
		if len(s.Unfulfilled) > 0 {
			fmt.Fprintf(&sb, "  unfulfilled: %s\n", strings.Join(s.Unfulfilled, ", "))
		}
		var cats []string
		for cat := range s.Substitutions {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			fmt.Fprintf(&sb, "  substituted in %s: %s\n", cat, strings.Join(s.Substitutions[cat], ", "))
		}
	}

	v := res.Validation
	sb.WriteString("\n=== Validation ===\n")
	fmt.Fprintf(&sb, "requested %d / fulfilled %d / unfulfilled %d (suppliers affected: %d)\n",
		v.TotalRequested, v.TotalFulfilled, v.TotalUnfulfilled, v.SuppliersAffected)
	for _, u := range v.Unfulfilled {
		fmt.Fprintf(&sb, "  %s %s (%s): %s", u.Supplier, u.Category, u.Session, u.Reason)
		if len(u.Attendees) > 0 {
			fmt.Fprintf(&sb, " [attendees: %s]", strings.Join(u.Attendees, ", "))
		}
		sb.WriteString("\n")
		var names []string
		for n := range u.Schedules {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			var busy []string
			for _, e := range u.Schedules[n] {
				busy = append(busy, fmt.Sprintf("%s %s (%s)", e.Day, e.Slot, e.Supplier))
			}
			fmt.Fprintf(&sb, "    %s booked: %s\n", n, strings.Join(busy, "; "))
		}
	}

	if len(res.Warnings) > 0 {
		sb.WriteString("\n=== Warnings ===\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&sb, "  %s\n", w)
		}
	}

	return sb.String()
}

type bookingJSON struct {
	Supplier string   `json:"supplier"`
	Booth    string   `json:"booth"`
	Day      string   `json:"day"`
	Slot     string   `json:"slot"`
	Session  string   `json:"session"`
	Category string   `json:"category"`
	Value    float64  `json:"value"`
	Staff    []string `json:"staff"`
}

type summaryJSON struct {
	Supplier      string              `json:"supplier"`
	Requested     []string            `json:"requested"`
	Fulfilled     []string            `json:"fulfilled"`
	Unfulfilled   []string            `json:"unfulfilled"`
	Substitutions map[string][]string `json:"substitutions,omitempty"`
}

type outputJSON struct {
	RunID     string             `json:"run_id"`
	BaseSeed  int64              `json:"base_seed"`
	AddOnSeed int64              `json:"addon_seed"`
	Bookings  []bookingJSON      `json:"bookings"`
	Summaries []summaryJSON      `json:"summaries"`
	Report    *report.Validation `json:"validation"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// FormatJSON returns the machine-readable schedule export.
func FormatJSON(res *engine.Result, cal *config.Calendar) string {
	_ = cal
	out := outputJSON{
		RunID:     res.RunID,
		BaseSeed:  res.BaseSeed,
		AddOnSeed: res.AddOnSeed,
		Report:    res.Validation,
		Warnings:  res.Warnings,
	}
	for _, b := range res.Bookings {
		out.Bookings = append(out.Bookings, bookingJSON{
			Supplier: b.Supplier,
			Booth:    b.Booth,
			Day:      b.Day,
			Slot:     b.Slot,
			Session:  b.Type.String(),
			Category: b.Category,
			Value:    b.Value,
			Staff:    b.Staff,
		})
	}
	var names []string
	for name := range res.Summaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := res.Summaries[name]
		out.Summaries = append(out.Summaries, summaryJSON{
			Supplier:      s.Supplier,
			Requested:     s.Requested,
			Fulfilled:     s.Fulfilled,
			Unfulfilled:   s.Unfulfilled,
			Substitutions: s.Substitutions,
		})
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(raw) + "\n"
}

// FormatCSV returns the flat booking table, one row per occupied slot.
func FormatCSV(res *engine.Result, cal *config.Calendar) string {
	_ = cal
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"supplier", "booth", "day", "slot", "session", "category", "value", "staff"})
	for _, b := range res.Bookings {
		_ = w.Write([]string{
			b.Supplier,
			b.Booth,
			b.Day,
			b.Slot,
			b.Type.String(),
			b.Category,
			fmt.Sprintf("%g", b.Value),
			strings.Join(b.Staff, "; "),
		})
	}
	w.Flush()
	return sb.String()
}
