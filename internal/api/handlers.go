package api

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/cache"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/db"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/planner"
)

// PlanEngine is what the handlers need from the planning core
type PlanEngine interface {
	Plan(ctx context.Context, q planner.Request) otp.Plan
}

// StopSource serves the stop and line listing endpoints
type StopSource interface {
	NearbyStops(ctx context.Context, lat, lon, radiusM float64, limit int) ([]models.NearbyStop, error)
	ActiveLines(ctx context.Context) ([]models.LineInfo, error)
}

var (
	engine       PlanEngine
	stopSource   StopSource
	cacheEnabled bool
	planTimeout  = 20 * time.Second
)

// Setup wires the handlers to the planning core. useCache disables the
// Redis layer for tests and cacheless deployments.
func Setup(e PlanEngine, s StopSource, useCache bool) {
	engine = e
	stopSource = s
	cacheEnabled = useCache
}

// PlanTrip handles GET /plan (and its OTP alias). Malformed coordinates
// are the only client error; everything past parsing degrades into a
// walk-only plan rather than an error status.
func PlanTrip(c *fiber.Ctx) error {
	fromStr := c.Query("fromPlace")
	toStr := c.Query("toPlace")

	if fromStr == "" || toStr == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: fromPlace and toPlace",
		})
	}

	fromLat, fromLon, err := parseCoordinates(fromStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'fromPlace' coordinates: %v", err),
		})
	}

	toLat, toLon, err := parseCoordinates(toStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'toPlace' coordinates: %v", err),
		})
	}

	numItineraries := 5
	if numStr := c.Query("numItineraries"); numStr != "" {
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			numItineraries = n
		}
	}

	// -1 lets the engine apply its configured depth; an explicit 0 means
	// direct rides only and is honored.
	maxTransfers := -1
	if mtStr := c.Query("maxTransfers"); mtStr != "" {
		if n, err := strconv.Atoi(mtStr); err == nil && n >= 0 {
			maxTransfers = n
		}
	}

	mode := c.Query("mode", "TRANSIT,WALK")

	ctx, cancel := context.WithTimeout(c.Context(), planTimeout)
	defer cancel()

	plan := computePlan(ctx, planner.Request{
		FromLat: fromLat, FromLon: fromLon,
		ToLat: toLat, ToLon: toLon,
		NumItineraries: numItineraries,
		MaxTransfers:   maxTransfers,
	}, numItineraries, mode)

	resp := otp.NewPlanResponse(plan)
	resp.RequestParameters["fromPlace"] = fromStr
	resp.RequestParameters["toPlace"] = toStr
	resp.RequestParameters["numItineraries"] = strconv.Itoa(numItineraries)
	resp.RequestParameters["mode"] = mode
	for _, key := range []string{"date", "time", "maxWalkDistance", "arriveBy"} {
		if v := c.Query(key); v != "" {
			resp.RequestParameters[key] = v
		}
	}

	return c.JSON(resp)
}

// computePlan runs the engine behind the Redis cache. Popular pairs share
// one computation through the lock; any cache failure just means planning
// without it.
func computePlan(ctx context.Context, q planner.Request, numItineraries int, mode string) otp.Plan {
	if !cacheEnabled {
		return engine.Plan(ctx, q)
	}

	cacheKey := cache.PlanKey(q.FromLat, q.FromLon, q.ToLat, q.ToLon, numItineraries, q.MaxTransfers, mode)
	lockKey := cache.LockKey(cacheKey)

	cached, err := cache.GetPlan(ctx, cacheKey)
	if err == nil && cached != nil {
		return *cached
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if err != nil {
		log.Printf("Failed to acquire lock: %v", err)
	} else if !acquired {
		cached, err := cache.WaitForLock(ctx, cacheKey, 3*time.Second)
		if err == nil && cached != nil {
			return *cached
		}
	}

	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	plan := engine.Plan(ctx, q)

	if err := cache.SetPlan(ctx, cacheKey, &plan, cache.LoadConfigFromEnv().TTL); err != nil {
		log.Printf("Failed to cache plan: %v", err)
	}

	return plan
}

// NearbyStopsResponse represents the response for nearby stops
type NearbyStopsResponse struct {
	Stops []NearbyStopInfo `json:"stops"`
	Total int              `json:"total"`
}

// NearbyStopInfo is one stop in a radius search result
type NearbyStopInfo struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DistanceM int     `json:"distance_meters"`
}

// StopsNearby handles the /v1/stops/nearby endpoint
func StopsNearby(c *fiber.Ctx) error {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	radiusStr := c.Query("radius", "500")

	if latStr == "" || lonStr == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: lat and lon",
		})
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return c.Status(400).JSON(fiber.Map{
			"error": "invalid latitude",
		})
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return c.Status(400).JSON(fiber.Map{
			"error": "invalid longitude",
		})
	}

	radius, err := strconv.Atoi(radiusStr)
	if err != nil || radius < 0 || radius > 5000 {
		return c.Status(400).JSON(fiber.Map{
			"error": "invalid radius (must be between 0 and 5000 meters)",
		})
	}

	found, err := stopSource.NearbyStops(c.Context(), lat, lon, float64(radius), 20)
	if err != nil {
		log.Printf("Query error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	stops := make([]NearbyStopInfo, 0, len(found))
	for _, s := range found {
		stops = append(stops, NearbyStopInfo{
			ID:        s.ID,
			Name:      s.Name,
			Lat:       s.Lat,
			Lon:       s.Lon,
			DistanceM: int(s.DistanceM),
		})
	}

	return c.JSON(NearbyStopsResponse{
		Stops: stops,
		Total: len(stops),
	})
}

// LinesListResponse represents the response for the lines list
type LinesListResponse struct {
	Lines []models.LineInfo `json:"lines"`
	Total int               `json:"total"`
}

// LinesList handles the /v1/lines endpoint
func LinesList(c *fiber.Ctx) error {
	lines, err := stopSource.ActiveLines(c.Context())
	if err != nil {
		log.Printf("Query error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if lines == nil {
		lines = []models.LineInfo{}
	}

	return c.JSON(LinesListResponse{
		Lines: lines,
		Total: len(lines),
	})
}

// Health handles the /health endpoint
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbErr := db.HealthCheck(ctx)
	dbStatus := "ok"
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisErr := cache.HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// parseCoordinates parses a "lat,lon" string into floats
func parseCoordinates(coordStr string) (lat, lon float64, err error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected format: lat,lon")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}

	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude must be between -180 and 180")
	}

	return lat, lon, nil
}
