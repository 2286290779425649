// Package main provides the LeadFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/vantagecrm/leadflow/pkg/engine"
	"github.com/vantagecrm/leadflow/pkg/eventbus"
	"github.com/vantagecrm/leadflow/pkg/lock"
	"github.com/vantagecrm/leadflow/pkg/persistence"
	"github.com/vantagecrm/leadflow/pkg/registry"
	"github.com/vantagecrm/leadflow/pkg/services"
	"github.com/vantagecrm/leadflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	locker      lock.Locker
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	locker lock.Locker,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		locker:      locker,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	templateService := services.NewTemplate(a.persistence, a.registry, a.validate)
	leadService := services.NewLead(a.persistence, a.validate)
	statsService := services.NewStats(a.persistence)
	eng := engine.NewEngine(a.persistence, a.registry, a.eventBus, a.locker, nil, a.logger)

	handlers := web.NewAPIHandlers(eng, templateService, leadService, statsService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("LeadFlow API")
	})

	templates := app.Group("/templates")
	templates.Get("/", handlers.ListTemplates)
	templates.Post("/", handlers.CreateTemplate)
	templates.Get("/:id", handlers.GetTemplate)

	leads := app.Group("/leads")
	leads.Get("/", handlers.ListLeads)
	leads.Post("/", handlers.CreateLead)
	leads.Get("/:id", handlers.GetLead)

	instances := app.Group("/instances")
	instances.Get("/", handlers.ListInstances)
	instances.Post("/", handlers.StartInstance)
	instances.Get("/:id", handlers.GetInstance)

	executions := app.Group("/executions")
	executions.Post("/:id/approve", handlers.ApproveGate)
	executions.Post("/:id/reject", handlers.RejectGate)

	app.Get("/stats", handlers.GetStats)
	app.Get("/executors", handlers.GetExecutors)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
