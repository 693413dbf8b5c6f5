package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/engine"
	"forum-scheduler/errors"
	"forum-scheduler/models"
	"forum-scheduler/opportunity"
	"forum-scheduler/resolver"
)

func testConfig() *config.Config {
	return &config.Config{
		Days: []config.Day{
			{Name: "Day 1", Slots: []config.Slot{
				{Label: "9:00 AM"},
				{Label: "9:30 AM"},
				{Label: "10:00 AM"},
				{Label: "10:30 AM"},
				{Label: "12:00 PM", Blackout: "LUNCH"},
				{Label: "1:00 PM"},
				{Label: "1:30 PM"},
			}},
			{Name: "Day 2", Slots: []config.Slot{
				{Label: "9:00 AM"},
				{Label: "9:30 AM"},
			}},
		},
		RotationBlocks: []config.RotationBlock{
			{Day: "Day 1", Slot: "9:00 AM", Supplier: "Norton"},
			{Day: "Day 1", Slot: "9:30 AM", Supplier: "Norton"},
			{Day: "Day 2", Slot: "9:00 AM", Supplier: "Mitutoyo"},
		},
		RotationCapacity:     10,
		MaxMeetingsPerStaff:  5,
		PeakCapacity:         5,
		AcceleratingCapacity: 3,
		PowerPairingBlackout: config.Window{Day: "Day 1", Slots: []string{"1:30 PM"}},
		Seeds:                8,
		AddOnSeeds:           5,
		Workers:              2,
	}
}

func testStaff() []models.Staff {
	return []models.Staff{
		{Name: "Alice", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 2, Rotation: true},
		{Name: "Bob", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 1, Rotation: true},
		{Name: "Carol", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 1, Rotation: true},
		{Name: "Dan", Region: "West", Segment: "Safety", District: "SW-2", Weight: 2},
		{Name: "Erin", Region: "West", Segment: "Safety", District: "SW-2", Weight: 1},
	}
}

func testRows() []opportunity.Row {
	return []opportunity.Row{
		{District: "NE-1", ProductLine: "Abrasives", Staff: "Alice", Value: 300},
		{District: "NE-1", ProductLine: "Abrasives", Staff: "Bob", Value: 200},
		{District: "NE-1", ProductLine: "Abrasives", Staff: "Carol", Value: 100},
		{District: "SW-2", ProductLine: "Cutting Tools", Staff: "Dan", Value: 150},
		{District: "SW-2", ProductLine: "Cutting Tools", Staff: "Erin", Value: 50},
	}
}

func testSuppliers() []*models.Supplier {
	acme := &models.Supplier{Name: "Acme", Tier: models.TierPeak, Booth: "1"}
	acme.Requests = []*models.MeetingRequest{
		{Supplier: "Acme", Seq: 1, Type: models.SessionStrategy, Category: "Abrasives", Value: 500,
			RawAttendees: []string{"Alice"}},
		{Supplier: "Acme", Seq: 2, Type: models.SessionPlanning, Category: "Abrasives", Value: 400,
			RawAttendees: []string{"NE-1"}},
		{Supplier: "Acme", Seq: 3, Type: models.SessionPowerPairing, Category: "Abrasives", Value: 300,
			RawAttendees: []string{"NE-1/Abrasives"}},
	}
	zenith := &models.Supplier{Name: "Zenith", Tier: models.TierAccelerating, Booth: "2"}
	zenith.Requests = []*models.MeetingRequest{
		{Supplier: "Zenith", Seq: 1, Type: models.SessionStrategy, Category: "Cutting Tools", Value: 250,
			RawAttendees: []string{"Bob"}},
		{Supplier: "Zenith", Seq: 2, Type: models.SessionPlanning, Category: "Regional", Value: 150,
			RawAttendees: []string{"West"}},
	}
	return []*models.Supplier{acme, zenith}
}

func newEngine(t *testing.T, cfg *config.Config) *engine.Engine {
	t.Helper()
	e, err := engine.New(cfg, testSuppliers(), testStaff(), testRows(), zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewRejectsUnknownSessionType(t *testing.T) {
	sup := &models.Supplier{Name: "Acme", Tier: models.TierPeak}
	sup.Requests = []*models.MeetingRequest{
		{Supplier: "Acme", Seq: 1, Type: models.SessionRotation, Category: "X"},
	}

	_, err := engine.New(testConfig(), []*models.Supplier{sup}, testStaff(), testRows(), zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownSessionType)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Seeds = 0

	_, err := engine.New(cfg, testSuppliers(), testStaff(), testRows(), zap.NewNop())
	assert.Error(t, err)
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	r1, err := newEngine(t, testConfig()).Run()
	require.NoError(t, err)
	r2, err := newEngine(t, testConfig()).Run()
	require.NoError(t, err)

	assert.NotEqual(t, r1.RunID, r2.RunID)
	assert.Equal(t, r1.BaseSeed, r2.BaseSeed)
	assert.Equal(t, r1.AddOnSeed, r2.AddOnSeed)
	assert.Equal(t, r1.Bookings, r2.Bookings)
	assert.Equal(t, r1.Validation.TotalFulfilled, r2.Validation.TotalFulfilled)
	assert.Equal(t, r1.Validation.TotalUnfulfilled, r2.Validation.TotalUnfulfilled)
	assert.Equal(t, r1.Warnings, r2.Warnings)
}

func TestRunScheduleInvariants(t *testing.T) {
	result, err := newEngine(t, testConfig()).Run()
	require.NoError(t, err)
	cfg := testConfig()
	cal := cfg.Calendar()

	// No actor, staff or supplier, appears in two rows at the same time.
	type slotKey struct{ day, slot string }
	occupied := make(map[slotKey]map[string]bool)
	for _, row := range result.Bookings {
		k := slotKey{row.Day, row.Slot}
		if occupied[k] == nil {
			occupied[k] = make(map[string]bool)
		}
		actors := append([]string{row.Supplier}, row.Staff...)
		for _, a := range actors {
			assert.False(t, occupied[k][a], "actor %s double-booked at %s %s", a, row.Day, row.Slot)
			occupied[k][a] = true
		}
		assert.True(t, cal.Open(models.TimeSlot{Day: row.Day, Slot: row.Slot}),
			"booking placed on a blackout or unknown slot")
	}

	// Paired sessions emit two rows per meeting, everything else one; the
	// global per-staff meeting ceiling holds, rotation rows excluded.
	weighted := make(map[string]int)
	for _, row := range result.Bookings {
		if row.Type == models.SessionRotation {
			continue
		}
		for _, n := range row.Staff {
			if row.Type.Paired() {
				weighted[n]++
			} else {
				weighted[n] += 2
			}
		}
	}
	for name, w := range weighted {
		assert.LessOrEqual(t, w, 2*cfg.MaxMeetingsPerStaff, "staff %s over meeting ceiling", name)
	}

	// Per-supplier fulfillment never exceeds the tier cap.
	caps := map[string]int{"Peak": cfg.PeakCapacity, "Accelerating": cfg.AcceleratingCapacity}
	for _, sc := range result.Validation.Suppliers {
		assert.LessOrEqual(t, sc.Fulfilled, caps[sc.Tier], "supplier %s over capacity", sc.Supplier)
		assert.Equal(t, sc.Requested, sc.Fulfilled+sc.Unfulfilled)
	}

	// Pass A accounts for every rotation-eligible staff member: either a
	// session placement or a warning, never silence.
	placed := make(map[string]bool)
	for _, row := range result.Bookings {
		if row.Type != models.SessionRotation {
			continue
		}
		for _, n := range row.Staff {
			placed[n] = true
		}
	}
	eligible := 0
	for _, st := range testStaff() {
		if st.Rotation {
			eligible++
		}
	}
	assert.Equal(t, eligible, len(placed)+len(result.Warnings))
}

func TestRunSelectsBestBaseSeed(t *testing.T) {
	cfg := testConfig()
	cfg.AddOnSeeds = 0
	cfg.Workers = 1

	sampler := newEngine(t, cfg)
	bestUnfulfilled := -1
	for seed := int64(1); seed <= int64(cfg.Seeds); seed++ {
		u, _ := sampler.SampleBase(seed)
		if bestUnfulfilled < 0 || u < bestUnfulfilled {
			bestUnfulfilled = u
		}
	}

	result, err := newEngine(t, cfg).Run()
	require.NoError(t, err)

	unfulfilled := 0
	for _, r := range result.Requests {
		if r.Source.Type == models.SessionPowerPairing {
			continue
		}
		if r.State == resolver.StateUnfulfilled {
			unfulfilled++
		}
	}
	assert.Equal(t, bestUnfulfilled, unfulfilled,
		"selected run must match the best fitness seen across all seeds")
	assert.GreaterOrEqual(t, result.BaseSeed, int64(1))
	assert.LessOrEqual(t, result.BaseSeed, int64(cfg.Seeds))
}

func TestRunAddOnDisabledMarksPowerPairing(t *testing.T) {
	cfg := testConfig()
	cfg.AddOnSeeds = 0

	result, err := newEngine(t, cfg).Run()
	require.NoError(t, err)

	assert.Zero(t, result.AddOnSeed)
	found := false
	for _, r := range result.Requests {
		if r.Source.Type != models.SessionPowerPairing {
			continue
		}
		found = true
		assert.Equal(t, resolver.StateUnfulfilled, r.State)
		assert.Equal(t, "add-on stage disabled", r.Reason)
	}
	assert.True(t, found)
}

func TestRunRegionTokenPlanning(t *testing.T) {
	cfg := testConfig()
	cfg.RotationBlocks = nil
	cfg.AddOnSeeds = 0
	cfg.Seeds = 3
	cfg.Workers = 1

	sup := &models.Supplier{Name: "Solo", Tier: models.TierPeak, Booth: "9"}
	sup.Requests = []*models.MeetingRequest{
		{Supplier: "Solo", Seq: 1, Type: models.SessionPlanning, Category: "Regional", Value: 100,
			RawAttendees: []string{"East"}},
	}
	staff := []models.Staff{
		{Name: "Alice", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 2},
		{Name: "Bob", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 1},
	}

	e, err := engine.New(cfg, []*models.Supplier{sup}, staff, testRows(), zap.NewNop())
	require.NoError(t, err)
	result, err := e.Run()
	require.NoError(t, err)

	// The region token resolves to its highest-weight member and the
	// single-slot session books exactly one row.
	require.Len(t, result.Bookings, 1)
	assert.Equal(t, []string{"Alice"}, result.Bookings[0].Staff)
	assert.Equal(t, models.SessionPlanning, result.Bookings[0].Type)
	assert.Equal(t, 1, result.Validation.TotalFulfilled)
	assert.Zero(t, result.Validation.TotalUnfulfilled)
}

func TestRunRotationTopUp(t *testing.T) {
	cfg := testConfig()
	cfg.RotationTopUp = true
	cfg.AddOnSeeds = 0

	result, err := newEngine(t, cfg).Run()
	require.NoError(t, err)

	// Top-up never violates session capacity: rotation rows at one slot
	// carry at most RotationCapacity staff.
	for _, row := range result.Bookings {
		if row.Type != models.SessionRotation {
			continue
		}
		assert.LessOrEqual(t, len(row.Staff), cfg.RotationCapacity)
	}
}
