package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

// fakeStore serves canned candidates so the pipeline runs without a
// database
type fakeStore struct {
	nearby        []models.NearbyStop
	geomCands     []models.GeometryCandidate
	stopCands     []models.StopCandidate
	transferCands []models.TransferCandidate
	tripleCands   []models.TripleTransferCandidate
	quadCands     []models.QuadTransferCandidate
	stopTransfers []models.StopTransferCandidate
	geoms         map[string][]geo.LatLng
	stops         map[int64]*models.Stop
}

func (f *fakeStore) NearbyStops(_ context.Context, _, _, _ float64, _ int) ([]models.NearbyStop, error) {
	return f.nearby, nil
}

func (f *fakeStore) RoutesThroughBoth(_ context.Context, _, _, _, _, _ float64) ([]models.GeometryCandidate, error) {
	return f.geomCands, nil
}

func (f *fakeStore) DirectStopRoutes(_ context.Context, _, _ []int64) ([]models.StopCandidate, error) {
	return f.stopCands, nil
}

func (f *fakeStore) TransferCandidates(_ context.Context, _, _, _, _, _, _ float64) ([]models.TransferCandidate, error) {
	return f.transferCands, nil
}

func (f *fakeStore) TripleTransferCandidates(_ context.Context, _, _, _, _, _, _ float64) ([]models.TripleTransferCandidate, error) {
	return f.tripleCands, nil
}

func (f *fakeStore) QuadTransferCandidates(_ context.Context, _, _, _, _, _, _ float64) ([]models.QuadTransferCandidate, error) {
	return f.quadCands, nil
}

func (f *fakeStore) StopTransferCandidates(_ context.Context, _, _ []int64) ([]models.StopTransferCandidate, error) {
	return f.stopTransfers, nil
}

func (f *fakeStore) PatternGeometry(_ context.Context, patternID string) ([]geo.LatLng, error) {
	return f.geoms[patternID], nil
}

func (f *fakeStore) StopByID(_ context.Context, id int64) (*models.Stop, error) {
	if st, ok := f.stops[id]; ok {
		return st, nil
	}
	return nil, assert.AnError
}

// verticalLine builds n vertices heading south from (lat, lon) in steps
// of ~111 m
func verticalLine(lat, lon float64, n int) []geo.LatLng {
	coords := make([]geo.LatLng, n)
	for i := range coords {
		coords[i] = geo.LatLng{Lat: lat - float64(i)*0.001, Lon: lon}
	}
	return coords
}

func lineRef(patternID, name string) models.LineRef {
	return models.LineRef{
		PatternID: patternID,
		Name:      name,
		ShortName: name,
		LongName:  "Linea " + name,
		Color:     "0088FF",
		TextColor: "FFFFFF",
	}
}

func assertAlternating(t *testing.T, legs []otp.Leg) {
	t.Helper()
	require.NotEmpty(t, legs)
	assert.Equal(t, "WALK", legs[0].Mode)
	assert.Equal(t, "WALK", legs[len(legs)-1].Mode)
	for i := 1; i < len(legs); i++ {
		assert.NotEqual(t, legs[i-1].Mode, legs[i].Mode, "legs %d and %d share a mode", i-1, i)
	}
}

func TestPlanDirectGeometry(t *testing.T) {
	store := &fakeStore{
		geomCands: []models.GeometryCandidate{
			{Line: lineRef("pattern:1:outbound", "Linea 17"), Sense: models.SenseOutbound},
		},
		geoms: map[string][]geo.LatLng{
			"pattern:1:outbound": verticalLine(-17.7800, -63.1800, 10),
		},
	}
	p := New(store, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78005, FromLon: -63.18002,
		ToLat: -17.78905, ToLon: -63.18002,
		StartTime: 1700000000000,
	})

	require.Len(t, plan.Itineraries, 1)
	it := plan.Itineraries[0]

	assertAlternating(t, it.Legs)
	require.Len(t, it.Legs, 3)
	assert.Equal(t, "BUS", it.Legs[1].Mode)
	assert.Equal(t, 0, it.Transfers)
	assert.True(t, it.Legs[1].TransitLeg)
	assert.Equal(t, "Linea 17", it.Legs[1].Route)
	assert.Equal(t, agencyName, it.Legs[1].AgencyName)
	assert.Equal(t, 10, it.Legs[1].LegGeometry.Length)

	assert.EqualValues(t, 300, it.WaitingTime)
	assert.Equal(t, it.WalkTime+it.WaitingTime+it.TransitTime, it.Duration)
	assert.Equal(t, it.StartTime+it.Duration*1000, it.EndTime)
}

func TestPlanWalkOnlyFallback(t *testing.T) {
	p := New(&fakeStore{}, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78, FromLon: -63.18,
		ToLat: -17.79, ToLon: -63.17,
		StartTime: 1700000000000,
	})

	require.Len(t, plan.Itineraries, 1)
	it := plan.Itineraries[0]
	require.Len(t, it.Legs, 1)
	assert.Equal(t, "WALK", it.Legs[0].Mode)
	assert.Equal(t, 0, it.Transfers)
	assert.Zero(t, it.TransitTime)

	direct := geo.Haversine(-17.78, -63.18, -17.79, -63.17)
	assert.Greater(t, it.WalkDistance, direct, "walk distance must include the street detour")
}

func TestPlanOriginEqualsDestination(t *testing.T) {
	p := New(&fakeStore{}, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78, FromLon: -63.18,
		ToLat: -17.78, ToLon: -63.18,
		StartTime: 1700000000000,
	})

	require.Len(t, plan.Itineraries, 1)
	it := plan.Itineraries[0]
	assert.Zero(t, it.WalkDistance)
	assert.Zero(t, it.Duration)
}

func TestPlanOneTransferChain(t *testing.T) {
	// Pattern A heads east along -17.780, pattern B heads south along
	// -63.180; they intersect at A's last vertex and B's first.
	patternA := make([]geo.LatLng, 11)
	for i := range patternA {
		patternA[i] = geo.LatLng{Lat: -17.7800, Lon: -63.1900 + float64(i)*0.001}
	}
	patternB := verticalLine(-17.7800, -63.1800, 11)

	store := &fakeStore{
		transferCands: []models.TransferCandidate{
			{
				First:       lineRef("pattern:1:outbound", "Linea 1"),
				Second:      lineRef("pattern:2:outbound", "Linea 2"),
				TransferLat: -17.7800,
				TransferLon: -63.1800,
			},
		},
		geoms: map[string][]geo.LatLng{
			"pattern:1:outbound": patternA,
			"pattern:2:outbound": patternB,
		},
	}
	p := New(store, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78002, FromLon: -63.18995,
		ToLat: -17.78998, ToLon: -63.18002,
		MaxTransfers: -1,
		StartTime:    1700000000000,
	})

	require.NotEmpty(t, plan.Itineraries)
	it := plan.Itineraries[0]

	assertAlternating(t, it.Legs)
	require.Len(t, it.Legs, 5)
	assert.Equal(t, 1, it.Transfers)
	assert.Equal(t, "Linea 1", it.Legs[1].Route)
	assert.Equal(t, "Linea 2", it.Legs[3].Route)
	assert.Equal(t, "Transfer point", it.Legs[1].To.Name)
	assert.EqualValues(t, 600, it.WaitingTime, "two boardings, one wait each")
	assert.Equal(t, it.WalkTime+it.WaitingTime+it.TransitTime, it.Duration)
}

func TestPlanStopTransferFallback(t *testing.T) {
	// No geometry intersections at all; the planner must fall back to the
	// shared-stop search and apply the settle time.
	store := &fakeStore{
		nearby: []models.NearbyStop{
			{Stop: models.Stop{ID: 1, Name: "Parada Norte", Lat: -17.7800, Lon: -63.1800, Active: true}},
			{Stop: models.Stop{ID: 3, Name: "Parada Sur", Lat: -17.7900, Lon: -63.1800, Active: true}},
		},
		stopTransfers: []models.StopTransferCandidate{
			{
				First:          lineRef("pattern:1:outbound", "Linea 1"),
				Second:         lineRef("pattern:2:outbound", "Linea 2"),
				OriginStopID:   1,
				TransferStopID: 2,
				DestStopID:     3,
				TransferLat:    -17.7850,
				TransferLon:    -63.1800,
				TransferName:   "Parada Central",
			},
		},
		stops: map[int64]*models.Stop{
			1: {ID: 1, Name: "Parada Norte", Lat: -17.7800, Lon: -63.1800, Active: true},
			3: {ID: 3, Name: "Parada Sur", Lat: -17.7900, Lon: -63.1800, Active: true},
		},
		geoms: map[string][]geo.LatLng{
			"pattern:1:outbound": verticalLine(-17.7800, -63.1800, 6),
			"pattern:2:outbound": verticalLine(-17.7850, -63.1800, 6),
		},
	}
	p := New(store, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78002, FromLon: -63.18002,
		ToLat: -17.78998, ToLon: -63.18002,
		MaxTransfers: 1,
		StartTime:    1700000000000,
	})

	require.NotEmpty(t, plan.Itineraries)
	it := plan.Itineraries[0]

	assertAlternating(t, it.Legs)
	require.Len(t, it.Legs, 5)
	assert.Equal(t, 1, it.Transfers)
	assert.Zero(t, it.Legs[2].Distance, "connecting walk at a shared stop is zero length")
	assert.Equal(t, "Parada Central", it.Legs[2].From.Name)
	assert.EqualValues(t, 780, it.WaitingTime, "two boardings plus settle")
}

func TestPlanMaxTransfersZero(t *testing.T) {
	// Same crossing-pattern setup that yields a one-transfer itinerary;
	// an explicit zero must keep the search direct-only.
	patternA := make([]geo.LatLng, 11)
	for i := range patternA {
		patternA[i] = geo.LatLng{Lat: -17.7800, Lon: -63.1900 + float64(i)*0.001}
	}
	store := &fakeStore{
		transferCands: []models.TransferCandidate{
			{
				First:       lineRef("pattern:1:outbound", "Linea 1"),
				Second:      lineRef("pattern:2:outbound", "Linea 2"),
				TransferLat: -17.7800,
				TransferLon: -63.1800,
			},
		},
		geoms: map[string][]geo.LatLng{
			"pattern:1:outbound": patternA,
			"pattern:2:outbound": verticalLine(-17.7800, -63.1800, 11),
		},
	}
	p := New(store, DefaultConfig())

	plan := p.Plan(context.Background(), Request{
		FromLat: -17.78002, FromLon: -63.18995,
		ToLat: -17.78998, ToLon: -63.18002,
		MaxTransfers: 0,
		StartTime:    1700000000000,
	})

	require.Len(t, plan.Itineraries, 1)
	for _, leg := range plan.Itineraries[0].Legs {
		assert.Equal(t, "WALK", leg.Mode)
	}
}

// cancellingStore cancels the request context once the transfer search
// runs, simulating a deadline that expires mid-plan
type cancellingStore struct {
	*fakeStore
	cancel context.CancelFunc
}

func (c *cancellingStore) TransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.TransferCandidate, error) {
	c.cancel()
	return c.fakeStore.TransferCandidates(ctx, fromLat, fromLon, toLat, toLon, radiusM, interPatternM)
}

func TestPlanDeadline(t *testing.T) {
	t.Run("already expired falls back to walking", func(t *testing.T) {
		store := &fakeStore{
			geomCands: []models.GeometryCandidate{
				{Line: lineRef("pattern:1:outbound", "Linea 17"), Sense: models.SenseOutbound},
			},
			geoms: map[string][]geo.LatLng{
				"pattern:1:outbound": verticalLine(-17.7800, -63.1800, 10),
			},
		}
		p := New(store, DefaultConfig())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		plan := p.Plan(ctx, Request{
			FromLat: -17.78005, FromLon: -63.18002,
			ToLat: -17.78905, ToLon: -63.18002,
			StartTime: 1700000000000,
		})

		require.Len(t, plan.Itineraries, 1)
		require.Len(t, plan.Itineraries[0].Legs, 1)
		assert.Equal(t, "WALK", plan.Itineraries[0].Legs[0].Mode)
	})

	t.Run("mid-plan expiry keeps what was built", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := &cancellingStore{
			fakeStore: &fakeStore{
				geomCands: []models.GeometryCandidate{
					{Line: lineRef("pattern:1:outbound", "Linea 17"), Sense: models.SenseOutbound},
				},
				transferCands: []models.TransferCandidate{
					{
						First:       lineRef("pattern:1:outbound", "Linea 17"),
						Second:      lineRef("pattern:2:outbound", "Linea 23"),
						TransferLat: -17.7850,
						TransferLon: -63.1800,
					},
				},
				geoms: map[string][]geo.LatLng{
					"pattern:1:outbound": verticalLine(-17.7800, -63.1800, 10),
					"pattern:2:outbound": verticalLine(-17.7800, -63.1810, 10),
				},
			},
			cancel: cancel,
		}
		p := New(store, DefaultConfig())

		plan := p.Plan(ctx, Request{
			FromLat: -17.78005, FromLon: -63.18002,
			ToLat: -17.78905, ToLon: -63.18002,
			MaxTransfers: -1,
			StartTime:    1700000000000,
		})

		require.Len(t, plan.Itineraries, 1, "the direct itinerary built before expiry survives")
		assert.Equal(t, 0, plan.Itineraries[0].Transfers)
		assert.Equal(t, "BUS", plan.Itineraries[0].Legs[1].Mode)
	})
}

func TestPlanDeterministic(t *testing.T) {
	store := &fakeStore{
		geomCands: []models.GeometryCandidate{
			{Line: lineRef("pattern:1:outbound", "Linea 17"), Sense: models.SenseOutbound},
			{Line: lineRef("pattern:2:outbound", "Linea 23"), Sense: models.SenseOutbound},
		},
		geoms: map[string][]geo.LatLng{
			"pattern:1:outbound": verticalLine(-17.7800, -63.1800, 10),
			"pattern:2:outbound": verticalLine(-17.7800, -63.1802, 10),
		},
	}
	p := New(store, DefaultConfig())
	q := Request{
		FromLat: -17.78005, FromLon: -63.18002,
		ToLat: -17.78905, ToLon: -63.18002,
		StartTime: 1700000000000,
	}

	first, err := json.Marshal(p.Plan(context.Background(), q))
	require.NoError(t, err)
	second, err := json.Marshal(p.Plan(context.Background(), q))
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical requests must serialize identically")
}

func TestRideSegment(t *testing.T) {
	straight := verticalLine(-17.7800, -63.1800, 100)

	t.Run("forward slice", func(t *testing.T) {
		seg := rideSegment(straight, 3, 7, "p")
		require.Len(t, seg, 5)
		assert.Equal(t, straight[3], seg[0])
		assert.Equal(t, straight[7], seg[4])
	})

	t.Run("equal projections rejected", func(t *testing.T) {
		assert.Nil(t, rideSegment(straight, 5, 5, "p"))
	})

	t.Run("far reversal rejected", func(t *testing.T) {
		assert.Nil(t, rideSegment(straight, 50, 10, "p"))
	})

	t.Run("near reversal recovered", func(t *testing.T) {
		seg := rideSegment(straight, 14, 10, "p")
		require.Len(t, seg, 5)
		assert.Equal(t, straight[14], seg[0])
		assert.Equal(t, straight[10], seg[4])
	})

	t.Run("circular wrap", func(t *testing.T) {
		// Ring whose last vertex ends a block from the first
		loop := make([]geo.LatLng, 100)
		for i := range loop {
			loop[i] = geo.LatLng{
				Lat: -17.7800 + 0.0001*float64(i%10),
				Lon: -63.1800 + 0.0001*float64(i/10),
			}
		}
		seg := rideSegment(loop, 90, 5, "p")
		require.Len(t, seg, 16, "vertices 90..99 then 0..5")
		assert.Equal(t, loop[90], seg[0])
		assert.Equal(t, loop[99], seg[9])
		assert.Equal(t, loop[0], seg[10])
		assert.Equal(t, loop[5], seg[15])
	})
}

func TestAdaptiveRadii(t *testing.T) {
	cases := []struct {
		directM    float64
		geomRadius float64
		stopRadius float64
	}{
		{500, 800, 1200},
		{1999, 800, 1200},
		{2000, 1500, 2000},
		{4999, 1500, 2000},
		{5000, 2500, 3000},
		{12000, 2500, 3000},
	}
	for _, c := range cases {
		geom, stop := adaptiveRadii(c.directM)
		assert.Equal(t, c.geomRadius, geom, "directM=%v", c.directM)
		assert.Equal(t, c.stopRadius, stop, "directM=%v", c.directM)
	}
}
