package planner

import (
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/geo"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

const agencyName = "Transporte SC"

// itineraryBuilder accumulates legs while advancing the request clock.
// Waits advance the clock without emitting a leg.
type itineraryBuilder struct {
	r           *request
	legs        []otp.Leg
	now         int64 // epoch ms
	walkTime    int64
	walkDist    float64
	transitTime int64
	waitTime    int64
}

func (r *request) newBuilder() *itineraryBuilder {
	return &itineraryBuilder{r: r, now: r.startTime}
}

// walk appends a walking leg of the given detour-scaled distance. The leg
// geometry is the straight segment between the endpoints.
func (b *itineraryBuilder) walk(from, to otp.Place, distM float64) {
	secs := geo.TravelTime(distM, b.r.p.cfg.WalkSpeedMPerMin)
	points := []geo.LatLng{{Lat: from.Lat, Lon: from.Lon}, {Lat: to.Lat, Lon: to.Lon}}

	b.legs = append(b.legs, otp.Leg{
		Mode:      string(models.ModeWalk),
		StartTime: b.now,
		EndTime:   b.now + int64(secs)*1000,
		Duration:  float64(secs),
		Distance:  distM,
		From:      from,
		To:        to,
		LegGeometry: otp.LegGeometry{
			Points: geo.EncodePolyline(points),
			Length: len(points),
		},
		IntermediateStops: []otp.Place{},
	})

	b.now += int64(secs) * 1000
	b.walkTime += int64(secs)
	b.walkDist += distM
}

// wait advances the clock without a leg
func (b *itineraryBuilder) wait(seconds int) {
	b.now += int64(seconds) * 1000
	b.waitTime += int64(seconds)
}

// bus appends a transit leg riding the given polyline segment
func (b *itineraryBuilder) bus(from, to otp.Place, line models.LineRef, segment []geo.LatLng, distM float64) {
	secs := geo.TravelTime(distM, b.r.p.cfg.BusSpeedMPerMin)

	b.legs = append(b.legs, otp.Leg{
		Mode:           string(models.ModeBus),
		StartTime:      b.now,
		EndTime:        b.now + int64(secs)*1000,
		Duration:       float64(secs),
		Distance:       distM,
		From:           from,
		To:             to,
		Route:          line.Name,
		RouteID:        line.PatternID,
		RouteShortName: line.ShortName,
		RouteLongName:  line.LongName,
		RouteColor:     line.Color,
		RouteTextColor: line.TextColor,
		AgencyName:     agencyName,
		LegGeometry: otp.LegGeometry{
			Points: geo.EncodePolyline(segment),
			Length: len(segment),
		},
		IntermediateStops: []otp.Place{},
		TransitLeg:        true,
	})

	b.now += int64(secs) * 1000
	b.transitTime += int64(secs)
}

func (b *itineraryBuilder) done(transfers int) *otp.Itinerary {
	return &otp.Itinerary{
		Legs:         b.legs,
		StartTime:    b.r.startTime,
		EndTime:      b.now,
		Duration:     (b.now - b.r.startTime) / 1000,
		WalkTime:     b.walkTime,
		WalkDistance: b.walkDist,
		Transfers:    transfers,
		TransitTime:  b.transitTime,
		WaitingTime:  b.waitTime,
	}
}

// walkOnlyItinerary is the last-resort plan: one walking leg straight
// from origin to destination, still detour-scaled.
func (r *request) walkOnlyItinerary() otp.Itinerary {
	b := r.newBuilder()
	b.walk(
		otp.NewPlace("Origin", r.from.Lat, r.from.Lon),
		otp.NewPlace("Destination", r.to.Lat, r.to.Lon),
		geo.WalkingDistance(r.from.Lat, r.from.Lon, r.to.Lat, r.to.Lon),
	)
	return *b.done(0)
}
