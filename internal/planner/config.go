package planner

// Config holds the process-wide tunables of the planning engine. All
// values are read-only once the planner is constructed.
type Config struct {
	WalkSpeedMPerMin       float64 // walking speed, meters per minute
	BusSpeedMPerMin        float64 // in-vehicle speed averaged over stops and traffic
	WaitSecondsPerBoard    int     // modeled wait before boarding any bus
	TransferSettleSeconds  int     // extra settle time at a stop-based transfer
	WalkPenaltyWeight      float64 // ranking weight of a walking second
	TransferPenaltySeconds float64 // ranking penalty per transfer
	InterPatternRadiusM    float64 // max distance between two polylines to transfer
	MaxTransfers           int     // deepest itinerary shape to attempt
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		WalkSpeedMPerMin:       70,
		BusSpeedMPerMin:        333,
		WaitSecondsPerBoard:    300,
		TransferSettleSeconds:  180,
		WalkPenaltyWeight:      5.0,
		TransferPenaltySeconds: 240,
		InterPatternRadiusM:    500,
		MaxTransfers:           3,
	}
}
