package main

import (
	"log/slog"

	"github.com/dukex/flytestate/pkg/models"
	"github.com/dukex/flytestate/pkg/registry"
	"github.com/dukex/flytestate/pkg/services"
	"github.com/dukex/flytestate/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// bodyLimit fits large closures with inline outputs.
const bodyLimit = 16 * 1024 * 1024

type API struct {
	logger      *slog.Logger
	service     *services.Execution
	registry    *registry.Registry
	parallelism models.ParallelismPolicy
}

func NewAPI(logger *slog.Logger, service *services.Execution, registry *registry.Registry, parallelism models.ParallelismPolicy) *API {
	return &API{
		logger:      logger,
		service:     service,
		registry:    registry,
		parallelism: parallelism,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.service, a.registry, web.WithParallelismPolicy(a.parallelism))

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			a.logger.ErrorContext(c.Context(), "Unhandled request error", "path", c.Path(), "error", err)

			return fiber.DefaultErrorHandler(c, err)
		},
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flytestate API")
	})

	handlers.Register(app)

	return app
}
