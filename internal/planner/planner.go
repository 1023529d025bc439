// Package planner builds ranked door-to-door itineraries for the Santa
// Cruz micro network. Micros halt on demand anywhere along their route,
// so candidates come primarily from pattern geometry rather than from
// scheduled stops: the engine collects bounded candidate sets from the
// spatial store, realizes each into a full itinerary, then ranks by
// generalized cost. A syntactically valid request always yields at least
// a walk-only plan.
package planner

import (
	"context"
	"log"
	"time"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

// Candidate caps per builder stage
const (
	maxGeometryCandidates      = 100
	maxStopCandidates          = 25
	maxTransferCandidates      = 50
	maxDoubleTransferCands     = 30
	maxTripleTransferCands     = 20
	nearbyStopLimit            = 50
	maxDirectStopWalkM         = 1200
	maxStopTransferWalkM       = 1500
	maxOneTransferWalkM        = 1000
	maxTwoTransferWalkM        = 800
	maxThreeTransferWalkM      = 600
	loopEndsThresholdM         = 1000
	reverseRecoveryMaxIndexGap = 10
)

// Store is the spatial query layer the planner reads from. Every call is
// a suspension point; the planner degrades gracefully when any of them
// fails or times out.
type Store interface {
	NearbyStops(ctx context.Context, lat, lon, radiusM float64, limit int) ([]models.NearbyStop, error)
	RoutesThroughBoth(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM float64) ([]models.GeometryCandidate, error)
	DirectStopRoutes(ctx context.Context, originStopIDs, destStopIDs []int64) ([]models.StopCandidate, error)
	TransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.TransferCandidate, error)
	TripleTransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.TripleTransferCandidate, error)
	QuadTransferCandidates(ctx context.Context, fromLat, fromLon, toLat, toLon, radiusM, interPatternM float64) ([]models.QuadTransferCandidate, error)
	StopTransferCandidates(ctx context.Context, originStopIDs, destStopIDs []int64) ([]models.StopTransferCandidate, error)
	PatternGeometry(ctx context.Context, patternID string) ([]geo.LatLng, error)
	StopByID(ctx context.Context, id int64) (*models.Stop, error)
}

// Planner is stateless across requests; one Plan call is one isolated
// computation and many may run concurrently.
type Planner struct {
	store Store
	cfg   Config
}

// New creates a planner over a spatial store
func New(store Store, cfg Config) *Planner {
	return &Planner{store: store, cfg: cfg}
}

// Request is one plan query
type Request struct {
	FromLat, FromLon float64
	ToLat, ToLon     float64
	NumItineraries   int
	// MaxTransfers caps the itinerary depth. Negative means the configured
	// default; zero plans direct rides only.
	MaxTransfers int
	// StartTime is the request clock in epoch milliseconds; zero means now
	StartTime int64
}

// request carries the per-request state: the clock, the adaptive radii
// and the pattern geometry cache, all discarded when the request ends.
type request struct {
	p         *Planner
	from, to  geo.LatLng
	startTime int64
	directM   float64
	geoms     map[string][]geo.LatLng
}

// Plan runs the full pipeline and always returns a plan: on deadline
// expiry it ranks whatever was built so far, and when nothing survives it
// falls back to a single walk-only itinerary.
func (p *Planner) Plan(ctx context.Context, q Request) otp.Plan {
	if q.NumItineraries <= 0 {
		q.NumItineraries = 5
	}
	if q.MaxTransfers < 0 || q.MaxTransfers > p.cfg.MaxTransfers {
		q.MaxTransfers = p.cfg.MaxTransfers
	}
	if q.StartTime == 0 {
		q.StartTime = time.Now().UnixMilli()
	}

	r := &request{
		p:         p,
		from:      geo.LatLng{Lat: q.FromLat, Lon: q.FromLon},
		to:        geo.LatLng{Lat: q.ToLat, Lon: q.ToLon},
		startTime: q.StartTime,
		directM:   geo.Haversine(q.FromLat, q.FromLon, q.ToLat, q.ToLon),
		geoms:     make(map[string][]geo.LatLng),
	}

	geomRadius, stopRadius := adaptiveRadii(r.directM)

	var itineraries []otp.Itinerary

	// Stage 1: direct rides found by pattern geometry. Micros board
	// anywhere, so this is the primary search.
	geomCands, err := p.store.RoutesThroughBoth(ctx, q.FromLat, q.FromLon, q.ToLat, q.ToLon, geomRadius)
	if err != nil {
		log.Printf("[planner] routes-through-both failed: %v", err)
	}
	for i, cand := range geomCands {
		if i >= maxGeometryCandidates || expired(ctx) {
			break
		}
		if it := r.buildGeometryDirect(ctx, cand); it != nil {
			itineraries = append(itineraries, *it)
		}
	}

	// Stage 2: direct rides over scheduled stop sequences, only when the
	// geometry search left the list short.
	var originStops, destStops []models.NearbyStop
	if len(itineraries) < q.NumItineraries && !expired(ctx) {
		originStops, destStops = r.nearbyStopSets(ctx, stopRadius)
		stopCands, err := p.store.DirectStopRoutes(ctx, stopIDs(originStops), stopIDs(destStops))
		if err != nil {
			log.Printf("[planner] direct stop routes failed: %v", err)
		}
		for i, cand := range stopCands {
			if i >= maxStopCandidates || expired(ctx) {
				break
			}
			if it := r.buildStopDirect(ctx, cand); it != nil {
				itineraries = append(itineraries, *it)
			}
		}
	}

	// Stage 3: one transfer via geometry intersections
	var transferCands []models.TransferCandidate
	if q.MaxTransfers >= 1 {
		cands, err := p.store.TransferCandidates(ctx, q.FromLat, q.FromLon, q.ToLat, q.ToLon, geomRadius, p.cfg.InterPatternRadiusM)
		if err != nil {
			log.Printf("[planner] transfer candidates failed: %v", err)
		}
		transferCands = cands
		for i, cand := range transferCands {
			if i >= maxTransferCandidates || expired(ctx) {
				break
			}
			it := r.buildChain(ctx, chainCandidate{
				lines:     []models.LineRef{cand.First, cand.Second},
				transfers: []geo.LatLng{{Lat: cand.TransferLat, Lon: cand.TransferLon}},
			}, maxOneTransferWalkM)
			if it != nil && it.WalkDistance < maxOneTransferWalkM {
				itineraries = append(itineraries, *it)
			}
		}
	}

	// Stage 3b: when the geometry intersection search comes back empty,
	// fall back to transfers through a shared scheduled stop. This is the
	// only path that applies the settle time.
	if q.MaxTransfers >= 1 && len(transferCands) == 0 && !expired(ctx) {
		if originStops == nil {
			originStops, destStops = r.nearbyStopSets(ctx, stopRadius)
		}
		stopTransferCands, err := p.store.StopTransferCandidates(ctx, stopIDs(originStops), stopIDs(destStops))
		if err != nil {
			log.Printf("[planner] stop transfer candidates failed: %v", err)
		}
		for i, cand := range stopTransferCands {
			if i >= maxTransferCandidates || expired(ctx) {
				break
			}
			if it := r.buildStopTransfer(ctx, cand); it != nil {
				itineraries = append(itineraries, *it)
			}
		}
	}

	// Stage 4: two transfers (three micros)
	if q.MaxTransfers >= 2 && len(itineraries) < q.NumItineraries && !expired(ctx) {
		tripleCands, err := p.store.TripleTransferCandidates(ctx, q.FromLat, q.FromLon, q.ToLat, q.ToLon, geomRadius, p.cfg.InterPatternRadiusM)
		if err != nil {
			log.Printf("[planner] triple transfer candidates failed: %v", err)
		}
		for i, cand := range tripleCands {
			if i >= maxDoubleTransferCands || expired(ctx) {
				break
			}
			it := r.buildChain(ctx, chainCandidate{
				lines: []models.LineRef{cand.First, cand.Second, cand.Third},
				transfers: []geo.LatLng{
					{Lat: cand.Transfer1Lat, Lon: cand.Transfer1Lon},
					{Lat: cand.Transfer2Lat, Lon: cand.Transfer2Lon},
				},
			}, maxTwoTransferWalkM)
			if it != nil && it.WalkDistance < maxTwoTransferWalkM {
				itineraries = append(itineraries, *it)
			}
		}
	}

	// Stage 5: three transfers (four micros). The chained candidate
	// search deepens the triple query; kept behind the strictest walk cap
	// because four boardings only ever beat walking on very long trips.
	if q.MaxTransfers >= 3 && len(itineraries) < q.NumItineraries && !expired(ctx) {
		itineraries = append(itineraries, r.threeTransferItineraries(ctx, q, geomRadius)...)
	}

	ranked := rank(itineraries, r.directM, p.cfg, q.NumItineraries)

	if len(ranked) == 0 {
		ranked = []otp.Itinerary{r.walkOnlyItinerary()}
	}

	return otp.Plan{
		Itineraries: ranked,
		Date:        r.startTime,
		From:        otp.NewPlace("Origin", q.FromLat, q.FromLon),
		To:          otp.NewPlace("Destination", q.ToLat, q.ToLon),
	}
}

// adaptiveRadii sizes the geometry and stop search radii from the direct
// distance: short trips search tight, cross-town trips search wide.
func adaptiveRadii(directM float64) (geomRadius, stopRadius float64) {
	switch {
	case directM < 2000:
		return 800, 1200
	case directM < 5000:
		return 1500, 2000
	default:
		return 2500, 3000
	}
}

// geometry returns the pattern polyline, cached for the request lifetime.
// Polylines with fewer than two vertices are treated as absent.
func (r *request) geometry(ctx context.Context, patternID string) []geo.LatLng {
	if coords, ok := r.geoms[patternID]; ok {
		return coords
	}
	coords, err := r.p.store.PatternGeometry(ctx, patternID)
	if err != nil {
		log.Printf("[planner] geometry fetch for %s failed: %v", patternID, err)
		coords = nil
	}
	if len(coords) < 2 {
		if coords != nil {
			log.Printf("[planner] pattern %s has degenerate geometry (%d vertices), skipping", patternID, len(coords))
		}
		coords = nil
	}
	r.geoms[patternID] = coords
	return coords
}

func (r *request) nearbyStopSets(ctx context.Context, stopRadius float64) (origin, dest []models.NearbyStop) {
	var err error
	origin, err = r.p.store.NearbyStops(ctx, r.from.Lat, r.from.Lon, stopRadius, nearbyStopLimit)
	if err != nil {
		log.Printf("[planner] nearby stops (origin) failed: %v", err)
	}
	dest, err = r.p.store.NearbyStops(ctx, r.to.Lat, r.to.Lon, stopRadius, nearbyStopLimit)
	if err != nil {
		log.Printf("[planner] nearby stops (destination) failed: %v", err)
	}
	return origin, dest
}

func stopIDs(stops []models.NearbyStop) []int64 {
	ids := make([]int64, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	return ids
}

// expired reports whether the request deadline has passed. Builders stop
// consuming candidates once it has; whatever was built still ranks.
func expired(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
