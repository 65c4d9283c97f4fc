package server

import (
	"log"

	"ai-analyst-be/internal/bootstrap"
	"ai-analyst-be/internal/config"
	"ai-analyst-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	// Routes
	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	// Readiness, not just liveness: report whether the pieces a question
	// actually needs are in place. The structured engine degrades to empty
	// results without a dataset, so dataset state is worth surfacing.
	app.Get("/health", func(ctx *fiber.Ctx) error {
		datasetLoaded := c.TabularStore != nil && c.TabularStore.TableName() != ""

		health := fiber.Map{
			"status":         "ok",
			"llm_provider":   cfg.Ai.LLMProvider,
			"llm_model":      cfg.Ai.LLMModel,
			"agent_ready":    c.Orchestrator != nil,
			"dataset_loaded": datasetLoaded,
		}
		if datasetLoaded {
			health["dataset_table"] = c.TabularStore.TableName()
			health["dataset_columns"] = len(c.TabularStore.Columns())
		}
		return ctx.JSON(health)
	})

	api := app.Group("/api")

	c.AssistantController.RegisterRoutes(api)
	c.DocumentController.RegisterRoutes(api)
}
