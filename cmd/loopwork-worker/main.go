// Package main provides the loopwork worker daemon: it consumes execution
// events, claims executions and advances them through their graphs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/loopworklabs/loopwork/pkg/audit"
	"github.com/loopworklabs/loopwork/pkg/cmd"
	"github.com/loopworklabs/loopwork/pkg/log"
	"github.com/loopworklabs/loopwork/pkg/workflow"
)

func main() {
	app := &cli.Command{
		Name:                  "loopwork-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to execute workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "kafka-consumer-group",
				Usage:   "Kafka consumer group for the worker pool",
				Value:   "loopwork-workers",
				Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("loopwork-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing Loopwork worker")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(
				command.String("event-bus"),
				logger,
				command.String("kafka-brokers"),
				command.String("kafka-consumer-group"),
			)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelTracer(ctx, "loopwork-worker")
				if err != nil {
					return err
				}
			}

			recorder := audit.NewRecorder(store.Activities(), logger)
			defer recorder.Flush()

			reg := cmd.NewRegistry(logger, store, recorder, cmd.Capabilities{})

			walker := workflow.NewWalker(workerID, store, reg, eventBus, logger, tracer)
			worker := workflow.NewWorker(eventBus, walker, logger)

			return worker.Start(ctx)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		panic(err)
	}
}
