// Package otp defines the OpenTripPlanner-compatible wire schema the
// frontend binds to. Field names and shapes are load-bearing: trufi-core
// parses this exact structure, including the "from"/"to" aliases and the
// floating-point leg duration.
package otp

// Place is a named coordinate: origin, destination, boarding point or stop
type Place struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	VertexType string  `json:"vertexType"`
	StopID     string  `json:"stopId,omitempty"`
}

// NewPlace builds a Place with the default vertex type
func NewPlace(name string, lat, lon float64) Place {
	return Place{Name: name, Lat: lat, Lon: lon, VertexType: "NORMAL"}
}

// LegGeometry carries the encoded polyline of a leg. Length is the number
// of input vertices, not the byte length of the encoding.
type LegGeometry struct {
	Points string `json:"points"`
	Length int    `json:"length"`
}

// Leg is one continuous single-mode segment of an itinerary
type Leg struct {
	Mode              string      `json:"mode"`
	StartTime         int64       `json:"startTime"`
	EndTime           int64       `json:"endTime"`
	Duration          float64     `json:"duration"`
	Distance          float64     `json:"distance"`
	From              Place       `json:"from"`
	To                Place       `json:"to"`
	Route             string      `json:"route"`
	RouteID           string      `json:"routeId,omitempty"`
	RouteShortName    string      `json:"routeShortName,omitempty"`
	RouteLongName     string      `json:"routeLongName,omitempty"`
	RouteColor        string      `json:"routeColor,omitempty"`
	RouteTextColor    string      `json:"routeTextColor,omitempty"`
	AgencyName        string      `json:"agencyName,omitempty"`
	LegGeometry       LegGeometry `json:"legGeometry"`
	IntermediateStops []Place     `json:"intermediateStops"`
	RentedBike        bool        `json:"rentedBike"`
	TransitLeg        bool        `json:"transitLeg"`
	RealTime          bool        `json:"realTime"`
	Pathway           bool        `json:"pathway"`
}

// Itinerary is one complete origin-to-destination plan built of legs
type Itinerary struct {
	Legs            []Leg   `json:"legs"`
	StartTime       int64   `json:"startTime"`
	EndTime         int64   `json:"endTime"`
	Duration        int64   `json:"duration"`
	WalkTime        int64   `json:"walkTime"`
	WalkDistance    float64 `json:"walkDistance"`
	Transfers       int     `json:"transfers"`
	TransitTime     int64   `json:"transitTime"`
	WaitingTime     int64   `json:"waitingTime"`
	ElevationLost   float64 `json:"elevationLost"`
	ElevationGained float64 `json:"elevationGained"`
	TooSloped       bool    `json:"tooSloped"`
}

// Plan is the ranked result set for one request
type Plan struct {
	Itineraries []Itinerary `json:"itineraries"`
	Date        int64       `json:"date"`
	From        Place       `json:"from"`
	To          Place       `json:"to"`
}

// PlanResponse is the top-level response wrapper
type PlanResponse struct {
	Plan              Plan              `json:"plan"`
	RequestParameters map[string]string `json:"requestParameters"`
}

// NewPlanResponse wraps a plan, guaranteeing requestParameters serializes
// as an object rather than null.
func NewPlanResponse(plan Plan) PlanResponse {
	return PlanResponse{Plan: plan, RequestParameters: map[string]string{}}
}
