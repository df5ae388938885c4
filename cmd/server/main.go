package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/localnerve/jam-build-cmdb/internal/blob"
	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/handlers"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/store"

	_ "github.com/localnerve/jam-build-cmdb/docs/api" // Swagger docs
)

// @title Jam-Build CMDB API
// @version 1.0.0
// @description Collaborative item catalog data service for jam-build
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/jam-build-cmdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mode, err := cascade.ParseMode(cfg.CascadeMode)
	if err != nil {
		log.Fatalf("Invalid cascade mode: %v", err)
	}

	// Connect to database (app pool)
	appDB, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to app database: %v", err)
	}
	defer database.Close(appDB)

	// Connect to database (reader pool)
	readerDB, err := database.ConnectReader(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to reader database: %v", err)
	}
	defer database.Close(readerDB)

	// Run auto-migrations
	if err := database.AutoMigrate(appDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// External collaborators
	blobs, err := blob.New(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	index, err := search.Open(cfg.SearchIndexPath)
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	engine := cascade.New(store.NewGormStore(appDB), mode, cascade.Collaborators{
		Blobs: blobs,
		Index: index,
	})
	svc := services.New(engine, readerDB, index)
	auth := &middleware.Auth{
		Sessions: services.NewAuthorizerSessions(cfg),
		Users:    svc,
	}
	health := &handlers.HealthHandler{
		Cfg:    cfg,
		DB:     appDB,
		Probes: []services.Probe{services.BlobProbe(blobs), services.SearchProbe(index)},
	}
	log.Printf("Cascade mode %s", mode)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    handlers.MaxImageBytes + 1<<20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))

	// Prometheus metrics
	prometheus := fiberprometheus.New("cmdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Uploaded collection images
	app.Static("/uploads", blobs.Dir())

	app.Get("/health", health.Health)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.RequestContext(cfg.RequestTimeout))
	api.Use(middleware.VersionMiddleware())
	api.Get("/health", health.Health)

	handlers.New(svc, blobs).Register(api, auth.AuthUser(), auth.AuthAdmin())

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer is initialized on the first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}
