package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/api"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/cache"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/db"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/middleware"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/planner"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/store"
)

func main() {
	log.Println("Starting route planner API server...")

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	// The planner works without Redis; caching and rate limiting are
	// disabled when it is unreachable.
	rdb, redisErr := cache.GetClient()
	if redisErr != nil {
		log.Printf("Redis unavailable, running without cache: %v", redisErr)
	} else {
		defer cache.Close()
		log.Println("✓ Redis connection established")
	}

	spatialStore := store.New(pool)
	engine := planner.New(spatialStore, planner.DefaultConfig())
	api.Setup(engine, spatialStore, redisErr == nil)

	app := fiber.New(fiber.Config{
		AppName:      "Planificador de Rutas SC",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	if redisErr == nil {
		app.Use(middleware.RateLimitMiddleware(rdb, middleware.DefaultRateLimits()))
	}

	app.Get("/health", api.Health)
	app.Get("/plan", api.PlanTrip)
	app.Get("/otp/routers/default/plan", api.PlanTrip)
	app.Get("/v1/stops/nearby", api.StopsNearby)
	app.Get("/v1/lines", api.LinesList)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Trip planning: http://localhost%s/plan?fromPlace=LAT,LON&toPlace=LAT,LON", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
