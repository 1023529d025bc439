package models

// TransitMode represents the type of transit service
type TransitMode string

const (
	ModeBus  TransitMode = "BUS"
	ModeWalk TransitMode = "WALK"
)

// Sense is the authored direction of a pattern
type Sense string

const (
	SenseOutbound Sense = "outbound"
	SenseInbound  Sense = "inbound"
)

// Line represents an operational service identity (a micro line)
type Line struct {
	ID        int64
	Name      string
	ShortName string
	LongName  string
	Color     string // 6-hex, no '#'
	TextColor string // 6-hex, no '#'
	Mode      TransitMode
	Active    bool
}

// Pattern represents one directional traversal of a Line.
// Patterns without a polyline cannot participate in planning.
type Pattern struct {
	ID     string // pattern:<lineId>:<sense>[:n]
	LineID int64
	Sense  Sense
}

// Stop represents a nominal boarding location
type Stop struct {
	ID     int64
	Name   string
	Lat    float64
	Lon    float64
	Active bool
}

// NearbyStop is a stop returned by a radius search, with its distance
// from the query point in meters
type NearbyStop struct {
	Stop
	DistanceM float64
}

// LineRef carries the display metadata a leg needs about the line
// serving a pattern
type LineRef struct {
	PatternID string
	Name      string
	ShortName string
	LongName  string
	Color     string
	TextColor string
}

// GeometryCandidate is a pattern whose polyline passes within the search
// radius of both the origin and the destination
type GeometryCandidate struct {
	Line           LineRef
	Sense          Sense
	DistFromOrigin float64 // meters, polyline to origin
	DistToDest     float64 // meters, polyline to destination
	RouteLengthM   float64
	TotalWalkM     float64 // DistFromOrigin + DistToDest
}

// StopCandidate is a pattern serving an origin stop before a destination
// stop in its authored sequence
type StopCandidate struct {
	Line         LineRef
	OriginStopID int64
	DestStopID   int64
	SeqStart     int
	SeqEnd       int
}

// TransferCandidate is a pair of patterns from different lines whose
// polylines approach within the inter-pattern radius. The transfer point
// is the closest point on the first pattern to the second.
type TransferCandidate struct {
	First          LineRef
	Second         LineRef
	DistFromOrigin float64
	DistToDest     float64
	RoutesDistM    float64 // min distance between the two polylines
	TransferLat    float64
	TransferLon    float64
	TotalWalkEstM  float64
}

// TripleTransferCandidate chains three patterns of pairwise distinct
// lines via two closest-point transfers
type TripleTransferCandidate struct {
	First        LineRef
	Second       LineRef
	Third        LineRef
	Transfer1Lat float64
	Transfer1Lon float64
	Transfer2Lat float64
	Transfer2Lon float64
}

// QuadTransferCandidate chains four patterns of pairwise distinct lines
// via three closest-point transfers
type QuadTransferCandidate struct {
	First        LineRef
	Second       LineRef
	Third        LineRef
	Fourth       LineRef
	Transfer1Lat float64
	Transfer1Lon float64
	Transfer2Lat float64
	Transfer2Lon float64
	Transfer3Lat float64
	Transfer3Lon float64
}

// StopTransferCandidate is a pair of patterns connected through a shared
// scheduled stop, with board/alight sequences on both patterns
type StopTransferCandidate struct {
	First          LineRef
	Second         LineRef
	OriginStopID   int64
	TransferStopID int64
	DestStopID     int64
	TransferLat    float64
	TransferLon    float64
	TransferName   string
}

// LineInfo is a line summary for the list endpoint
type LineInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	Color     string `json:"color"`
	Mode      string `json:"mode"`
	Patterns  int    `json:"patterns"`
}
