package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"forum-scheduler/config"
	"forum-scheduler/models"
	"forum-scheduler/opportunity"
	"forum-scheduler/resolver"
)

func testRoster() *models.Roster {
	return models.NewRoster([]models.Staff{
		{Name: "Dana", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 3, Rotation: true},
		{Name: "Bob", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 2, Rotation: true},
		{Name: "Carol", Region: "East", Segment: "Industrial", District: "NE-1", Weight: 1, Rotation: true},
		{Name: "Erin", Region: "East", Segment: "Safety", District: "NE-2", Weight: 1, Rotation: true},
		{Name: "Frank", Region: "West", Segment: "Industrial", District: "SW-2", Weight: 2, Rotation: true},
		{Name: "Gina", Region: "West", Segment: "Industrial", District: "SW-2", Weight: 1, Rotation: true},
	})
}

func testIndex() *opportunity.Index {
	return opportunity.NewIndex([]opportunity.Row{
		{District: "NE-1", ProductLine: "Abrasives", Staff: "Carol", Value: 200},
		{District: "NE-1", ProductLine: "Abrasives", Staff: "Bob", Value: 100},
	})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxMeetingsPerStaff = 5
	return cfg
}

func newResolver(cfg *config.Config) *resolver.Resolver {
	return resolver.New(cfg, testIndex(), zap.NewNop())
}

func supplierWith(name string, tier models.Tier, reqs ...*models.MeetingRequest) *models.Supplier {
	s := &models.Supplier{Name: name, Tier: tier, Booth: "12", Requests: reqs}
	for _, r := range reqs {
		r.Supplier = name
	}
	return s
}

func TestResolveClassification(t *testing.T) {
	tests := map[string]struct {
		req         *models.MeetingRequest
		literals    []string
		seats       int
		unavailable []string
	}{
		"ExplicitNames_Deduplicated": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionStrategy, Category: "Abrasives",
				RawAttendees: []string{"Dana", "Dana", "Bob"}},
			literals: []string{"Dana", "Bob"},
		},
		"UnresolvableToken_RecordedNotFatal": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionStrategy, Category: "Abrasives",
				RawAttendees: []string{"Zed"}},
			unavailable: []string{"Zed"},
		},
		"TerritoryStrategy_LeadPlusSeat": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionStrategy, Category: "Abrasives",
				RawAttendees: []string{"NE-1/Abrasives"}},
			literals: []string{"Dana"},
			seats:    1,
		},
		"TerritoryPlanning_TwoSeatsNoLead": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPlanning, Category: "Abrasives",
				RawAttendees: []string{"NE-1"}},
			seats: 1,
		},
		"TerritoryPowerPairing_SingleSeat": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPowerPairing, Category: "Abrasives",
				RawAttendees: []string{"NE-1"}},
			seats: 1,
		},
		"LegacyRegion_HighestWeightNaturalPick": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPlanning, Category: "Regional",
				RawAttendees: []string{"East"}},
			literals: []string{"Dana"},
		},
		"LegacyWeight3Collision_SameSegmentWeight1": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPlanning, Category: "Regional",
				RawAttendees: []string{"Dana", "East"}},
			literals: []string{"Dana", "Carol"},
		},
		"LegacyWeight2Collision_SameRegionWeight1": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPlanning, Category: "Regional",
				RawAttendees: []string{"Frank", "West"}},
			literals: []string{"Frank", "Gina"},
		},
		"LegacyWeight1Collision_AnotherSameRegionWeight1": {
			req: &models.MeetingRequest{Seq: 1, Type: models.SessionPlanning, Category: "Regional",
				RawAttendees: []string{"Erin", "Safety"}},
			literals: []string{"Erin", "Carol"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rv := newResolver(testConfig())
			sup := supplierWith("Acme", models.TierPeak, tc.req)

			reqs := rv.Resolve([]*models.Supplier{sup}, testRoster())
			require.Len(t, reqs, 1)
			r := reqs[0]

			if tc.literals == nil {
				assert.Empty(t, r.Literals())
			} else {
				assert.Equal(t, tc.literals, r.Literals())
			}
			assert.Len(t, r.Seats(), tc.seats)
			assert.Equal(t, tc.unavailable, r.Unavailable)
		})
	}
}

func TestPlanningSeatCount(t *testing.T) {
	rv := newResolver(testConfig())
	sup := supplierWith("Acme", models.TierPeak, &models.MeetingRequest{
		Seq: 1, Type: models.SessionPlanning, RawAttendees: []string{"NE-1/Abrasives"},
	})

	reqs := rv.Resolve([]*models.Supplier{sup}, testRoster())
	seats := reqs[0].Seats()
	require.Len(t, seats, 1)
	assert.Equal(t, 2, seats[0].Count)
	assert.Equal(t, "NE-1", seats[0].District)
	assert.Equal(t, "Abrasives", seats[0].ProductLine)
}

func TestTerritoryLeadUniquePerSupplier(t *testing.T) {
	rv := newResolver(testConfig())
	sup := supplierWith("Acme", models.TierPeak,
		&models.MeetingRequest{Seq: 1, Type: models.SessionStrategy, RawAttendees: []string{"NE-1"}},
		&models.MeetingRequest{Seq: 2, Type: models.SessionStrategy, RawAttendees: []string{"NE-1"}},
	)

	reqs := rv.Resolve([]*models.Supplier{sup}, testRoster())
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"Dana"}, reqs[0].Literals())
	assert.Equal(t, []string{"Bob"}, reqs[1].Literals(), "second lead pick skips the used name")
}

func TestLegacyNoFallback_DroppedAndRecorded(t *testing.T) {
	roster := models.NewRoster([]models.Staff{
		{Name: "Henry", Region: "North", Segment: "Industrial", District: "NN-1", Weight: 2},
	})
	rv := newResolver(testConfig())
	sup := supplierWith("Acme", models.TierPeak, &models.MeetingRequest{
		Seq: 1, Type: models.SessionPlanning, RawAttendees: []string{"Henry", "North"},
	})

	reqs := rv.Resolve([]*models.Supplier{sup}, roster)
	assert.Equal(t, []string{"Henry"}, reqs[0].Literals())
	assert.Equal(t, []string{"North"}, reqs[0].Unavailable)
}

func TestCeilingEnforcement_LowTierLosesName(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMeetingsPerStaff = 1
	rv := newResolver(cfg)

	peak := supplierWith("BigCo", models.TierPeak, &models.MeetingRequest{
		Seq: 1, Type: models.SessionStrategy, Category: "Industrial", RawAttendees: []string{"Bob"},
	})
	acc := supplierWith("SmallCo", models.TierAccelerating, &models.MeetingRequest{
		Seq: 1, Type: models.SessionStrategy, Category: "Industrial", RawAttendees: []string{"Bob"},
	})

	reqs := rv.Resolve([]*models.Supplier{peak, acc}, testRoster())
	require.Len(t, reqs, 2)

	var peakReq, accReq *resolver.Request
	for _, r := range reqs {
		if r.Supplier.Name == "BigCo" {
			peakReq = r
		} else {
			accReq = r
		}
	}

	// The Accelerating supplier is visited first by the ceiling pass, so
	// it loses Bob to the weight-tier fallback.
	assert.Equal(t, []string{"Bob"}, peakReq.Literals())
	assert.Empty(t, peakReq.Unavailable)
	assert.Equal(t, []string{"Carol"}, accReq.Literals())
	assert.Equal(t, []string{"Bob"}, accReq.Unavailable)
}

func TestCeilingEnforcement_NoFallbackDrops(t *testing.T) {
	roster := models.NewRoster([]models.Staff{
		{Name: "Henry", Region: "North", Segment: "Industrial", District: "NN-1", Weight: 2},
	})
	cfg := testConfig()
	cfg.MaxMeetingsPerStaff = 1
	rv := newResolver(cfg)

	a := supplierWith("A", models.TierPeak, &models.MeetingRequest{
		Seq: 1, Type: models.SessionStrategy, Category: "X", RawAttendees: []string{"Henry"},
	})
	b := supplierWith("B", models.TierAccelerating, &models.MeetingRequest{
		Seq: 1, Type: models.SessionStrategy, Category: "X", RawAttendees: []string{"Henry"},
	})

	reqs := rv.Resolve([]*models.Supplier{a, b}, roster)
	for _, r := range reqs {
		if r.Supplier.Name == "B" {
			assert.Empty(t, r.Literals())
			assert.Equal(t, []string{"Henry"}, r.Unavailable)
		} else {
			assert.Equal(t, []string{"Henry"}, r.Literals())
		}
	}
}

func TestRawNamesAccountedFor(t *testing.T) {
	// Every roster name in the raw token list ends up either in the
	// resolved literals or in the unavailable record, never neither.
	cfg := testConfig()
	cfg.MaxMeetingsPerStaff = 1
	rv := newResolver(cfg)

	var sups []*models.Supplier
	for i, name := range []string{"A", "B", "C"} {
		sups = append(sups, supplierWith(name, models.TierAccelerating, &models.MeetingRequest{
			Seq: i + 1, Type: models.SessionPlanning, Category: "X",
			RawAttendees: []string{"Bob", "Zed"},
		}))
	}
	roster := testRoster()

	for _, r := range rv.Resolve(sups, roster) {
		resolved := make(map[string]bool)
		for _, n := range r.Literals() {
			resolved[n] = true
		}
		unavailable := make(map[string]bool)
		for _, n := range r.Unavailable {
			unavailable[n] = true
		}
		for _, tok := range r.Source.RawAttendees {
			if _, onRoster := roster.Lookup(tok); !onRoster {
				assert.True(t, unavailable[tok], "token %s must be recorded unavailable", tok)
				continue
			}
			assert.True(t, resolved[tok] || unavailable[tok],
				"name %s absent from both resolved and unavailable lists", tok)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	rv := newResolver(testConfig())
	sup := supplierWith("Acme", models.TierPeak, &models.MeetingRequest{
		Seq: 1, Type: models.SessionStrategy, RawAttendees: []string{"Dana"},
	})
	reqs := rv.Resolve([]*models.Supplier{sup}, testRoster())

	clones := resolver.CloneAll(reqs)
	clones[0].State = resolver.StateBooked
	clones[0].Attendees = append(clones[0].Attendees, models.Literal("Bob"))
	clones[0].Unavailable = append(clones[0].Unavailable, "X")

	assert.Equal(t, resolver.StatePending, reqs[0].State)
	assert.Len(t, reqs[0].Attendees, 1)
	assert.Empty(t, reqs[0].Unavailable)
}
