package otp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegJSONShape(t *testing.T) {
	leg := Leg{
		Mode:      "WALK",
		StartTime: 1700000000000,
		EndTime:   1700000060000,
		Duration:  60,
		Distance:  70,
		From:      NewPlace("Origin", -17.78, -63.18),
		To:        NewPlace("Destination", -17.781, -63.18),
		LegGeometry: LegGeometry{
			Points: "abc",
			Length: 2,
		},
		IntermediateStops: []Place{},
	}

	data, err := json.Marshal(leg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "from")
	assert.Contains(t, raw, "to")
	assert.NotContains(t, raw, "From")

	// duration serializes as a JSON number even for whole seconds
	assert.IsType(t, float64(0), raw["duration"])

	for _, key := range []string{"rentedBike", "transitLeg", "realTime", "pathway"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, []any{}, raw["intermediateStops"])
	assert.Equal(t, "", raw["route"], "walk legs carry an empty route name")
	assert.NotContains(t, raw, "routeId", "unset route metadata stays off the wire")
}

func TestPlaceDefaults(t *testing.T) {
	p := NewPlace("Origin", -17.78, -63.18)
	assert.Equal(t, "NORMAL", p.VertexType)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stopId", "unset stop id is omitted")
}

func TestPlanResponseEnvelope(t *testing.T) {
	resp := NewPlanResponse(Plan{
		Itineraries: []Itinerary{},
		Date:        1700000000000,
		From:        NewPlace("Origin", -17.78, -63.18),
		To:          NewPlace("Destination", -17.79, -63.17),
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	require.Contains(t, raw, "plan")
	require.Contains(t, raw, "requestParameters")
	assert.Equal(t, map[string]any{}, raw["requestParameters"], "empty parameters serialize as an object, not null")

	plan := raw["plan"].(map[string]any)
	assert.Contains(t, plan, "from")
	assert.Contains(t, plan, "to")
}

func TestItineraryElevationFields(t *testing.T) {
	data, err := json.Marshal(Itinerary{Legs: []Leg{}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, float64(0), raw["elevationLost"])
	assert.Equal(t, float64(0), raw["elevationGained"])
	assert.Equal(t, false, raw["tooSloped"])
}
