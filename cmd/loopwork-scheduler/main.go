// Package main provides the loopwork scheduler daemon: it polls suspended
// executions whose resume time has passed and advances them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loopworklabs/loopwork/pkg/audit"
	"github.com/loopworklabs/loopwork/pkg/cmd"
	"github.com/loopworklabs/loopwork/pkg/log"
	"github.com/loopworklabs/loopwork/pkg/workflow"
)

func main() {
	app := &cli.Command{
		Name:                  "loopwork-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Resume suspended workflow executions when due",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
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
				Usage:   "Kafka consumer group",
				Value:   "loopwork-scheduler",
				Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
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

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = "scheduler-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("loopwork-scheduler").With("scheduler_id", schedulerID)
			logger.InfoContext(ctx, "Initializing Loopwork scheduler")

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

			recorder := audit.NewRecorder(store.Activities(), logger)
			defer recorder.Flush()

			reg := cmd.NewRegistry(logger, store, recorder, cmd.Capabilities{})

			walker := workflow.NewWalker(schedulerID, store, reg, eventBus, logger, nil)
			scheduler := workflow.NewScheduler(store, walker, logger)

			return scheduler.Start(ctx)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		panic(err)
	}
}
