package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/planner"
)

type fakeEngine struct {
	lastRequest planner.Request
}

func (f *fakeEngine) Plan(_ context.Context, q planner.Request) otp.Plan {
	f.lastRequest = q
	return otp.Plan{
		Itineraries: []otp.Itinerary{
			{Legs: []otp.Leg{{Mode: "WALK"}}},
		},
		From: otp.NewPlace("Origin", q.FromLat, q.FromLon),
		To:   otp.NewPlace("Destination", q.ToLat, q.ToLon),
	}
}

type fakeStopSource struct {
	stops []models.NearbyStop
	lines []models.LineInfo
	err   error
}

func (f *fakeStopSource) NearbyStops(_ context.Context, _, _, _ float64, _ int) ([]models.NearbyStop, error) {
	return f.stops, f.err
}

func (f *fakeStopSource) ActiveLines(_ context.Context) ([]models.LineInfo, error) {
	return f.lines, f.err
}

func newTestApp(e PlanEngine, s StopSource) *fiber.App {
	Setup(e, s, false)
	app := fiber.New()
	app.Get("/plan", PlanTrip)
	app.Get("/otp/routers/default/plan", PlanTrip)
	app.Get("/v1/stops/nearby", StopsNearby)
	app.Get("/v1/lines", LinesList)
	return app
}

func TestPlanTrip(t *testing.T) {
	eng := &fakeEngine{}
	app := newTestApp(eng, &fakeStopSource{})

	t.Run("valid request returns a plan", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/plan?fromPlace=-17.78,-63.18&toPlace=-17.79,-63.17", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(body, &raw))

		require.Contains(t, raw, "plan")
		plan := raw["plan"].(map[string]any)
		assert.NotEmpty(t, plan["itineraries"])

		params := raw["requestParameters"].(map[string]any)
		assert.Equal(t, "-17.78,-63.18", params["fromPlace"])
		assert.Equal(t, "5", params["numItineraries"])
	})

	t.Run("otp alias serves the same handler", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/otp/routers/default/plan?fromPlace=-17.78,-63.18&toPlace=-17.79,-63.17", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("echoes optional parameters", func(t *testing.T) {
		req := httptest.NewRequest("GET",
			"/plan?fromPlace=-17.78,-63.18&toPlace=-17.79,-63.17&numItineraries=3&date=2024-05-01&time=08:30&maxWalkDistance=800", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var raw struct {
			RequestParameters map[string]string `json:"requestParameters"`
		}
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.Equal(t, "3", raw.RequestParameters["numItineraries"])
		assert.Equal(t, "2024-05-01", raw.RequestParameters["date"])
		assert.Equal(t, "08:30", raw.RequestParameters["time"])
		assert.Equal(t, "800", raw.RequestParameters["maxWalkDistance"])

		assert.Equal(t, 3, eng.lastRequest.NumItineraries)
	})

	t.Run("transfer depth reaches the engine", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/plan?fromPlace=-17.78,-63.18&toPlace=-17.79,-63.17&maxTransfers=0", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 0, eng.lastRequest.MaxTransfers, "an explicit zero is passed through, not defaulted")

		req = httptest.NewRequest("GET", "/plan?fromPlace=-17.78,-63.18&toPlace=-17.79,-63.17", nil)
		_, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, -1, eng.lastRequest.MaxTransfers, "absent means the engine default")
	})

	t.Run("missing parameters rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/plan?fromPlace=-17.78,-63.18", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("malformed coordinates rejected", func(t *testing.T) {
		for _, from := range []string{"abc", "-17.78", "-17.78,-63.18,9", "91.0,-63.18", "-17.78,181.0"} {
			req := httptest.NewRequest("GET", "/plan?fromPlace="+from+"&toPlace=-17.79,-63.17", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, 400, resp.StatusCode, "fromPlace=%s", from)
		}
	})
}

func TestStopsNearby(t *testing.T) {
	src := &fakeStopSource{
		stops: []models.NearbyStop{
			{Stop: models.Stop{ID: 7, Name: "Parada Central", Lat: -17.78, Lon: -63.18}, DistanceM: 42.7},
		},
	}
	app := newTestApp(&fakeEngine{}, src)

	t.Run("returns stops with distances", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/stops/nearby?lat=-17.78&lon=-63.18&radius=600", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		var out NearbyStopsResponse
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Stops, 1)
		assert.EqualValues(t, 7, out.Stops[0].ID)
		assert.Equal(t, 42, out.Stops[0].DistanceM)
		assert.Equal(t, 1, out.Total)
	})

	t.Run("rejects bad radius", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/stops/nearby?lat=-17.78&lon=-63.18&radius=9999", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("rejects missing coordinates", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/stops/nearby?lat=-17.78", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func TestLinesList(t *testing.T) {
	src := &fakeStopSource{
		lines: []models.LineInfo{
			{ID: 17, Name: "Linea 17", ShortName: "17", Mode: "BUS", Patterns: 2},
		},
	}
	app := newTestApp(&fakeEngine{}, src)

	req := httptest.NewRequest("GET", "/v1/lines", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out LinesListResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Lines, 1)
	assert.Equal(t, "Linea 17", out.Lines[0].Name)
	assert.Equal(t, 1, out.Total)
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, err := parseCoordinates(" -17.783 , -63.182 ")
	require.NoError(t, err)
	assert.Equal(t, -17.783, lat)
	assert.Equal(t, -63.182, lon)
}
