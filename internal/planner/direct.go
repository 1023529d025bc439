package planner

import (
	"context"
	"log"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

// buildGeometryDirect realizes a zero-transfer itinerary from a pattern
// whose polyline passes near both endpoints. The rider boards and alights
// at the nearest polyline vertices.
func (r *request) buildGeometryDirect(ctx context.Context, cand models.GeometryCandidate) *otp.Itinerary {
	coords := r.geometry(ctx, cand.Line.PatternID)
	if coords == nil {
		return nil
	}

	board, iBoard := geo.ClosestVertex(coords, r.from.Lat, r.from.Lon)
	alight, iAlight := geo.ClosestVertex(coords, r.to.Lat, r.to.Lon)

	segment := rideSegment(coords, iBoard, iAlight, cand.Line.PatternID)
	if segment == nil {
		return nil
	}

	boardPlace := otp.NewPlace("Bus boarding", board.Lat, board.Lon)
	alightPlace := otp.NewPlace("Bus alighting", alight.Lat, alight.Lon)

	b := r.newBuilder()
	b.walk(otp.NewPlace("Origin", r.from.Lat, r.from.Lon), boardPlace,
		geo.WalkingDistance(r.from.Lat, r.from.Lon, board.Lat, board.Lon))
	b.wait(r.p.cfg.WaitSecondsPerBoard)
	b.bus(boardPlace, alightPlace, cand.Line, segment, geo.PathDistance(segment))
	b.walk(alightPlace, otp.NewPlace("Destination", r.to.Lat, r.to.Lon),
		geo.WalkingDistance(alight.Lat, alight.Lon, r.to.Lat, r.to.Lon))

	return b.done(0)
}

// rideSegment slices the polyline between the board and alight vertices.
// When the alight vertex precedes the board vertex the pattern may still
// work: circular routes wrap past the end, and a near-identity inversion
// is recovered by riding the short stretch reversed. Anything else is an
// invalid direction.
func rideSegment(coords []geo.LatLng, iBoard, iAlight int, patternID string) []geo.LatLng {
	if iBoard < iAlight {
		return coords[iBoard : iAlight+1]
	}

	// Equal projections mean no ride at all
	if iBoard == iAlight {
		return nil
	}

	first := coords[0]
	last := coords[len(coords)-1]
	if geo.Haversine(first.Lat, first.Lon, last.Lat, last.Lon) < loopEndsThresholdM {
		segment := make([]geo.LatLng, 0, len(coords)-iBoard+iAlight+1)
		segment = append(segment, coords[iBoard:]...)
		segment = append(segment, coords[:iAlight+1]...)
		return segment
	}

	if iBoard-iAlight < reverseRecoveryMaxIndexGap {
		// Rides against the authored direction; tolerated as projection
		// noise but worth surfacing while the projection model is vertex
		// based.
		log.Printf("[planner] pattern %s: reversed segment recovery (%d..%d), riding against authored direction", patternID, iAlight, iBoard)
		segment := make([]geo.LatLng, iBoard-iAlight+1)
		for i := range segment {
			segment[i] = coords[iBoard-i]
		}
		return segment
	}

	return nil
}

// buildStopDirect realizes a zero-transfer itinerary over a pattern's
// scheduled stops: board at the origin stop, alight at the destination
// stop. Candidates demanding more than 1.2 km of walking are discarded.
func (r *request) buildStopDirect(ctx context.Context, cand models.StopCandidate) *otp.Itinerary {
	originStop, err := r.p.store.StopByID(ctx, cand.OriginStopID)
	if err != nil {
		log.Printf("[planner] origin stop lookup failed: %v", err)
		return nil
	}
	destStop, err := r.p.store.StopByID(ctx, cand.DestStopID)
	if err != nil {
		log.Printf("[planner] destination stop lookup failed: %v", err)
		return nil
	}

	walkToStop := geo.WalkingDistance(r.from.Lat, r.from.Lon, originStop.Lat, originStop.Lon)
	walkFromStop := geo.WalkingDistance(destStop.Lat, destStop.Lon, r.to.Lat, r.to.Lon)
	if walkToStop+walkFromStop > maxDirectStopWalkM {
		return nil
	}

	// The leg rides between the two stops; the pattern polyline, when
	// present, only illustrates the trace.
	segment := r.geometry(ctx, cand.Line.PatternID)
	if segment == nil {
		segment = []geo.LatLng{
			{Lat: originStop.Lat, Lon: originStop.Lon},
			{Lat: destStop.Lat, Lon: destStop.Lon},
		}
	}
	busDist := geo.Haversine(originStop.Lat, originStop.Lon, destStop.Lat, destStop.Lon)

	boardPlace := otp.NewPlace(originStop.Name, originStop.Lat, originStop.Lon)
	alightPlace := otp.NewPlace(destStop.Name, destStop.Lat, destStop.Lon)

	b := r.newBuilder()
	b.walk(otp.NewPlace("Origin", r.from.Lat, r.from.Lon), boardPlace, walkToStop)
	b.wait(r.p.cfg.WaitSecondsPerBoard)
	b.bus(boardPlace, alightPlace, cand.Line, segment, busDist)
	b.walk(alightPlace, otp.NewPlace("Destination", r.to.Lat, r.to.Lon), walkFromStop)

	return b.done(0)
}
