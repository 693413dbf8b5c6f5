// Package config externalizes everything the scheduler previously
// hard-coded: the event calendar with its blackout slots, the rotating
// presentation block table, capacity ceilings and search budgets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"forum-scheduler/errors"
	"forum-scheduler/models"
)

// Slot is one calendar entry within a day. A non-empty Blackout marks a
// mandatory break (e.g. "LUNCH") during which no booking may occur.
type Slot struct {
	Label    string `yaml:"label"`
	Blackout string `yaml:"blackout,omitempty"`
}

// Day is an ordered sequence of slots.
type Day struct {
	Name  string `yaml:"name"`
	Slots []Slot `yaml:"slots"`
}

// RotationBlock assigns a single calendar slot to the supplier presenting
// during it. Consecutive blocks for the same supplier within a day merge
// into one multi-slot session.
type RotationBlock struct {
	Day      string `yaml:"day"`
	Slot     string `yaml:"slot"`
	Supplier string `yaml:"supplier"`
}

// Window is a day plus a set of slot labels, used for the power-pairing
// hard blackout.
type Window struct {
	Day   string   `yaml:"day"`
	Slots []string `yaml:"slots"`
}

// Contains reports whether the window covers the given timeslot.
func (w Window) Contains(ts models.TimeSlot) bool {
	if w.Day != ts.Day {
		return false
	}
	for _, s := range w.Slots {
		if s == ts.Slot {
			return true
		}
	}
	return false
}

// Config drives one full scheduling run.
type Config struct {
	Days []Day `yaml:"days"`

	RotationBlocks   []RotationBlock `yaml:"rotation_blocks"`
	RotationCapacity int             `yaml:"rotation_capacity"`
	RotationTopUp    bool            `yaml:"rotation_top_up"`

	MaxMeetingsPerStaff  int `yaml:"max_meetings_per_staff"`
	PeakCapacity         int `yaml:"peak_capacity"`
	AcceleratingCapacity int `yaml:"accelerating_capacity"`

	PowerPairingBlackout Window `yaml:"power_pairing_blackout"`

	// Seeds bounds the outer search, AddOnSeeds the power-pairing add-on
	// search. AddOnSeeds == 0 disables the add-on stage entirely.
	Seeds      int `yaml:"seeds"`
	AddOnSeeds int `yaml:"addon_seeds"`
	// Workers bounds the trial worker pool. Values below 1 mean serial.
	Workers int `yaml:"workers"`

	// CrossRegionFallback widens the resolver substitution search to any
	// region once the in-region chain is exhausted. Off by default to
	// match the original substitution policy.
	CrossRegionFallback bool `yaml:"cross_region_fallback"`
}

// Default returns the configuration of the original two-day event: Day 1
// with half-hour slots from 8:00 AM to 4:30 PM and a 12:00 PM lunch
// blackout, Day 2 ending at 11:30 AM, and the fixed presentation blocks.
func Default() *Config {
	day1 := Day{Name: "Day 1"}
	for _, l := range []string{
		"8:00 AM", "8:30 AM", "9:00 AM", "9:30 AM", "10:00 AM", "10:30 AM",
		"11:00 AM", "11:30 AM",
	} {
		day1.Slots = append(day1.Slots, Slot{Label: l})
	}
	day1.Slots = append(day1.Slots, Slot{Label: "12:00 PM", Blackout: "LUNCH"})
	for _, l := range []string{
		"1:00 PM", "1:30 PM", "2:00 PM", "2:30 PM", "3:00 PM", "3:30 PM",
		"4:00 PM", "4:30 PM",
	} {
		day1.Slots = append(day1.Slots, Slot{Label: l})
	}

	day2 := Day{Name: "Day 2"}
	for _, l := range []string{
		"8:00 AM", "8:30 AM", "9:00 AM", "9:30 AM", "10:00 AM", "10:30 AM",
		"11:00 AM", "11:30 AM",
	} {
		day2.Slots = append(day2.Slots, Slot{Label: l})
	}

	return &Config{
		Days: []Day{day1, day2},
		RotationBlocks: []RotationBlock{
			{Day: "Day 1", Slot: "9:00 AM", Supplier: "Norton"},
			{Day: "Day 1", Slot: "9:30 AM", Supplier: "Kimberly-Clark"},
			{Day: "Day 1", Slot: "10:00 AM", Supplier: "Kimberly-Clark"},
			{Day: "Day 1", Slot: "10:30 AM", Supplier: "Apex Tool Group"},
			{Day: "Day 1", Slot: "11:00 AM", Supplier: "Kennametal"},
			{Day: "Day 1", Slot: "11:30 AM", Supplier: "Kennametal"},
			{Day: "Day 1", Slot: "1:00 PM", Supplier: "Parker Hannifin"},
			{Day: "Day 1", Slot: "1:30 PM", Supplier: "3M"},
			{Day: "Day 1", Slot: "2:00 PM", Supplier: "3M"},
			{Day: "Day 1", Slot: "2:30 PM", Supplier: "Sandvik Coromant"},
			{Day: "Day 1", Slot: "3:00 PM", Supplier: "Milwaukee"},
			{Day: "Day 1", Slot: "3:30 PM", Supplier: "Milwaukee"},
			{Day: "Day 1", Slot: "4:00 PM", Supplier: "OSG"},
			{Day: "Day 2", Slot: "9:00 AM", Supplier: "Ansell"},
			{Day: "Day 2", Slot: "9:30 AM", Supplier: "Mitutoyo"},
			{Day: "Day 2", Slot: "10:00 AM", Supplier: "Mitutoyo"},
			{Day: "Day 2", Slot: "10:30 AM", Supplier: "Master Fluid Solutions"},
		},
		RotationCapacity: 10,
		RotationTopUp:    true,

		MaxMeetingsPerStaff:  5,
		PeakCapacity:         5,
		AcceleratingCapacity: 3,

		PowerPairingBlackout: Window{Day: "Day 1", Slots: []string{"4:00 PM", "4:30 PM"}},

		Seeds:      60,
		AddOnSeeds: 40,
		Workers:    4,
	}
}

// Load reads a YAML configuration file. Missing optional fields fall back
// to zero values; callers should Validate the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// TierCapacity returns the meeting-capacity ceiling for a supplier tier.
func (c *Config) TierCapacity(t models.Tier) int {
	if t == models.TierPeak {
		return c.PeakCapacity
	}
	return c.AcceleratingCapacity
}

// Validate checks the structural integrity of the configuration.
func (c *Config) Validate() error {
	if len(c.Days) == 0 {
		return errors.ErrNoDays
	}
	seen := make(map[models.TimeSlot]bool)
	for _, d := range c.Days {
		for _, s := range d.Slots {
			ts := models.TimeSlot{Day: d.Name, Slot: s.Label}
			if seen[ts] {
				return fmt.Errorf("%w: %s", errors.ErrDuplicateSlot, ts)
			}
			seen[ts] = true
		}
	}
	for _, b := range c.RotationBlocks {
		if !seen[models.TimeSlot{Day: b.Day, Slot: b.Slot}] {
			return fmt.Errorf("rotation block %s %s: %w", b.Day, b.Slot, errors.ErrUnknownSlot)
		}
	}
	for _, s := range c.PowerPairingBlackout.Slots {
		if !seen[models.TimeSlot{Day: c.PowerPairingBlackout.Day, Slot: s}] {
			return fmt.Errorf("power-pairing blackout %s %s: %w", c.PowerPairingBlackout.Day, s, errors.ErrUnknownSlot)
		}
	}
	if c.RotationCapacity <= 0 || c.MaxMeetingsPerStaff <= 0 ||
		c.PeakCapacity <= 0 || c.AcceleratingCapacity <= 0 {
		return errors.ErrBadCapacity
	}
	if c.Seeds <= 0 {
		return fmt.Errorf("seeds: %w", errors.ErrBadCapacity)
	}
	return nil
}

// Calendar is the precomputed booking view of the configured days:
// blackout slots are excluded from candidate enumeration entirely.
type Calendar struct {
	days    []Day
	open    map[models.TimeSlot]bool
	slots   []models.TimeSlot
	windows [][2]models.TimeSlot
	order   map[models.TimeSlot]int
}

// Calendar builds the derived calendar view.
func (c *Config) Calendar() *Calendar {
	cal := &Calendar{
		open:  make(map[models.TimeSlot]bool),
		order: make(map[models.TimeSlot]int),
		days:  c.Days,
	}
	pos := 0
	for _, d := range c.Days {
		var prev *models.TimeSlot
		for _, s := range d.Slots {
			ts := models.TimeSlot{Day: d.Name, Slot: s.Label}
			cal.order[ts] = pos
			pos++
			if s.Blackout != "" {
				// A blackout breaks slot adjacency for paired sessions.
				prev = nil
				continue
			}
			cal.open[ts] = true
			cal.slots = append(cal.slots, ts)
			if prev != nil {
				cal.windows = append(cal.windows, [2]models.TimeSlot{*prev, ts})
			}
			p := ts
			prev = &p
		}
	}
	return cal
}

// Open reports whether the timeslot exists and is not a blackout.
func (c *Calendar) Open(ts models.TimeSlot) bool {
	return c.open[ts]
}

// Slots returns all bookable timeslots in calendar order. The caller owns
// the returned slice.
func (c *Calendar) Slots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Windows returns all pairs of consecutive bookable slots within a day,
// in calendar order. The caller owns the returned slice.
func (c *Calendar) Windows() [][2]models.TimeSlot {
	out := make([][2]models.TimeSlot, len(c.windows))
	copy(out, c.windows)
	return out
}

// Order returns a stable sort key for a timeslot, following calendar
// order. Unknown slots sort last.
func (c *Calendar) Order(ts models.TimeSlot) int {
	if p, ok := c.order[ts]; ok {
		return p
	}
	return len(c.order)
}
