package planner

import (
	"context"
	"fmt"
	"log"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

// chainCandidate is a sequence of patterns linked by geometry transfer
// points: riding pattern k, walking to pattern k+1 at transfers[k].
type chainCandidate struct {
	lines     []models.LineRef
	transfers []geo.LatLng
}

// buildChain realizes a k-transfer itinerary from a geometry chain. Every
// board/alight point is a projected polyline vertex; the candidate dies
// if any projection violates the riding order or the total walk exceeds
// the cap for its depth.
func (r *request) buildChain(ctx context.Context, cand chainCandidate, walkCapM float64) *otp.Itinerary {
	n := len(cand.lines)
	if n < 2 || len(cand.transfers) != n-1 {
		return nil
	}

	coords := make([][]geo.LatLng, n)
	for i, line := range cand.lines {
		coords[i] = r.geometry(ctx, line.PatternID)
		if coords[i] == nil {
			return nil
		}
	}

	board, iBoard := geo.ClosestVertex(coords[0], r.from.Lat, r.from.Lon)
	alight, iAlight := geo.ClosestVertex(coords[n-1], r.to.Lat, r.to.Lon)

	// Transfer k projects onto the pattern being left (out) and the
	// pattern being boarded (in)
	outPts := make([]geo.LatLng, n-1)
	outIdx := make([]int, n-1)
	inPts := make([]geo.LatLng, n-1)
	inIdx := make([]int, n-1)
	for k, tp := range cand.transfers {
		outPts[k], outIdx[k] = geo.ClosestVertex(coords[k], tp.Lat, tp.Lon)
		inPts[k], inIdx[k] = geo.ClosestVertex(coords[k+1], tp.Lat, tp.Lon)
	}

	// Riding order must be strictly forward on every pattern
	if iBoard >= outIdx[0] {
		return nil
	}
	for k := 1; k < n-1; k++ {
		if inIdx[k-1] >= outIdx[k] {
			return nil
		}
	}
	if inIdx[n-2] >= iAlight {
		return nil
	}

	walkTotal := geo.WalkingDistance(r.from.Lat, r.from.Lon, board.Lat, board.Lon)
	for k := 0; k < n-1; k++ {
		walkTotal += geo.WalkingDistance(outPts[k].Lat, outPts[k].Lon, inPts[k].Lat, inPts[k].Lon)
	}
	walkTotal += geo.WalkingDistance(alight.Lat, alight.Lon, r.to.Lat, r.to.Lon)
	if walkTotal > walkCapM {
		return nil
	}

	b := r.newBuilder()
	boardPlace := otp.NewPlace("Bus boarding", board.Lat, board.Lon)
	b.walk(otp.NewPlace("Origin", r.from.Lat, r.from.Lon), boardPlace,
		geo.WalkingDistance(r.from.Lat, r.from.Lon, board.Lat, board.Lon))

	ridePlace := boardPlace
	rideIdx := iBoard
	for k := 0; k < n; k++ {
		b.wait(r.p.cfg.WaitSecondsPerBoard)

		var toPlace otp.Place
		var endIdx int
		if k < n-1 {
			toPlace = otp.NewPlace(transferName(k, n-1), outPts[k].Lat, outPts[k].Lon)
			endIdx = outIdx[k]
		} else {
			toPlace = otp.NewPlace("Bus alighting", alight.Lat, alight.Lon)
			endIdx = iAlight
		}

		segment := coords[k][rideIdx : endIdx+1]
		b.bus(ridePlace, toPlace, cand.lines[k], segment, geo.PathDistance(segment))

		if k < n-1 {
			nextPlace := otp.NewPlace(transferName(k, n-1), inPts[k].Lat, inPts[k].Lon)
			b.walk(toPlace, nextPlace,
				geo.WalkingDistance(outPts[k].Lat, outPts[k].Lon, inPts[k].Lat, inPts[k].Lon))
			ridePlace = nextPlace
			rideIdx = inIdx[k]
		}
	}

	b.walk(otp.NewPlace("Bus alighting", alight.Lat, alight.Lon),
		otp.NewPlace("Destination", r.to.Lat, r.to.Lon),
		geo.WalkingDistance(alight.Lat, alight.Lon, r.to.Lat, r.to.Lon))

	return b.done(n - 1)
}

func transferName(k, total int) string {
	if total == 1 {
		return "Transfer point"
	}
	return fmt.Sprintf("Transfer %d", k+1)
}

// threeTransferItineraries runs the deepest search: chains of four
// patterns. Only attempted when shallower stages left the list short.
func (r *request) threeTransferItineraries(ctx context.Context, q Request, geomRadius float64) []otp.Itinerary {
	cands, err := r.p.store.QuadTransferCandidates(ctx, q.FromLat, q.FromLon, q.ToLat, q.ToLon, geomRadius, r.p.cfg.InterPatternRadiusM)
	if err != nil {
		log.Printf("[planner] quad transfer candidates failed: %v", err)
		return nil
	}

	var itineraries []otp.Itinerary
	for i, cand := range cands {
		if i >= maxTripleTransferCands || expired(ctx) {
			break
		}
		it := r.buildChain(ctx, chainCandidate{
			lines: []models.LineRef{cand.First, cand.Second, cand.Third, cand.Fourth},
			transfers: []geo.LatLng{
				{Lat: cand.Transfer1Lat, Lon: cand.Transfer1Lon},
				{Lat: cand.Transfer2Lat, Lon: cand.Transfer2Lon},
				{Lat: cand.Transfer3Lat, Lon: cand.Transfer3Lon},
			},
		}, maxThreeTransferWalkM)
		if it != nil && it.WalkDistance < maxThreeTransferWalkM {
			itineraries = append(itineraries, *it)
		}
	}
	return itineraries
}

// buildStopTransfer realizes a one-transfer itinerary through a shared
// scheduled stop. Both buses call at the same stop, so the connecting
// walk is zero-length; the transfer instead costs settle time on top of
// the boarding wait.
func (r *request) buildStopTransfer(ctx context.Context, cand models.StopTransferCandidate) *otp.Itinerary {
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
	if walkToStop+walkFromStop > maxStopTransferWalkM {
		return nil
	}

	transferPlace := otp.NewPlace(cand.TransferName, cand.TransferLat, cand.TransferLon)
	boardPlace := otp.NewPlace(originStop.Name, originStop.Lat, originStop.Lon)
	alightPlace := otp.NewPlace(destStop.Name, destStop.Lat, destStop.Lon)

	segment1 := r.geometry(ctx, cand.First.PatternID)
	if segment1 == nil {
		segment1 = []geo.LatLng{
			{Lat: originStop.Lat, Lon: originStop.Lon},
			{Lat: cand.TransferLat, Lon: cand.TransferLon},
		}
	}
	segment2 := r.geometry(ctx, cand.Second.PatternID)
	if segment2 == nil {
		segment2 = []geo.LatLng{
			{Lat: cand.TransferLat, Lon: cand.TransferLon},
			{Lat: destStop.Lat, Lon: destStop.Lon},
		}
	}

	b := r.newBuilder()
	b.walk(otp.NewPlace("Origin", r.from.Lat, r.from.Lon), boardPlace, walkToStop)
	b.wait(r.p.cfg.WaitSecondsPerBoard)
	b.bus(boardPlace, transferPlace, cand.First, segment1,
		geo.Haversine(originStop.Lat, originStop.Lon, cand.TransferLat, cand.TransferLon))
	b.wait(r.p.cfg.TransferSettleSeconds)
	b.walk(transferPlace, transferPlace, 0)
	b.wait(r.p.cfg.WaitSecondsPerBoard)
	b.bus(transferPlace, alightPlace, cand.Second, segment2,
		geo.Haversine(cand.TransferLat, cand.TransferLon, destStop.Lat, destStop.Lon))
	b.walk(alightPlace, otp.NewPlace("Destination", r.to.Lat, r.to.Lon), walkFromStop)

	return b.done(1)
}
