package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/loopworklabs/loopwork/pkg/cmd"
	"github.com/loopworklabs/loopwork/pkg/dedupe"
	"github.com/loopworklabs/loopwork/pkg/eventbus"
	"github.com/loopworklabs/loopwork/pkg/persistence"
	"github.com/loopworklabs/loopwork/pkg/services"
	"github.com/loopworklabs/loopwork/pkg/web"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	deduper  dedupe.Store
	eventBus eventbus.EventBus
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	deduper dedupe.Store,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:   logger,
		store:    store,
		deduper:  deduper,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflowService(a.store)
	executionService := services.NewExecutionService(a.store, a.deduper, a.eventBus, a.logger)
	registry := cmd.NewRegistry(a.logger, a.store, nil, cmd.Capabilities{})

	handlers := web.NewAPIHandlers(workflowService, executionService, a.validate, registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loopwork API")
	})

	handlers.Register(app)

	return app
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	}
}
