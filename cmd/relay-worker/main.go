// Package main provides the relay worker: it dispatches queued trigger events and resumes deferred runs.
package main

import (
	"context"
	"os"

	"github.com/dukex/relay/pkg/cmd"
	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/log"
	"github.com/dukex/relay/pkg/otelhelper"
	"github.com/dukex/relay/pkg/scheduler"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	command := &cli.Command{
		Name:                  "relay-worker",
		EnableShellCompletion: true,
		Usage:                 "Run automations for queued trigger events and resume deferred tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (memory, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers used by the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL of the poller lock; empty runs the poller unlocked",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "poll-schedule",
				Usage:   "Cron schedule of the deferred task poller",
				Value:   scheduler.DefaultSchedule,
				Sources: cli.EnvVars("POLL_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "poll-batch-size",
				Usage:   "Maximum deferred tasks claimed per poll",
				Value:   scheduler.DefaultBatchSize,
				Sources: cli.EnvVars("POLL_BATCH_SIZE"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-base-url",
				Usage:   "Base URL of the WhatsApp Cloud API",
				Sources: cli.EnvVars("WHATSAPP_BASE_URL"),
			},
			&cli.IntFlag{
				Name:    "max-steps",
				Usage:   "Maximum number of nodes a single run may visit",
				Value:   engine.DefaultMaxSteps,
				Sources: cli.EnvVars("MAX_STEPS"),
			},
			&cli.IntFlag{
				Name:    "max-forward-depth",
				Usage:   "Maximum length of a forward_automation chain",
				Value:   engine.DefaultMaxForwardDepth,
				Sources: cli.EnvVars("MAX_FORWARD_DEPTH"),
			},
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "Default timezone of business_hours conditions",
				Sources: cli.EnvVars("TIMEZONE"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.SetupWriter(os.Stderr, command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("relay-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing Relay Worker")

			var tracer trace.Tracer

			if command.Bool("otel-enabled") {
				otelTracer, shutdown, err := otelhelper.NewTracer(ctx, "relay-worker")
				if err != nil {
					return err
				}

				tracer = otelTracer

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "relay-worker", command.StringSlice("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			runner, err := cmd.NewEngine(persistence, logger, cmd.EngineConfig{
				WhatsAppBaseURL: command.String("whatsapp-base-url"),
				MaxSteps:        command.Int("max-steps"),
				MaxForwardDepth: command.Int("max-forward-depth"),
				Timezone:        command.String("timezone"),
				Publisher:       eventBus,
				Tracer:          tracer,
				WorkerID:        workerID,
			})
			if err != nil {
				return err
			}

			pollerOpts := []scheduler.Option{
				scheduler.WithSchedule(command.String("poll-schedule")),
				scheduler.WithBatchSize(command.Int("poll-batch-size")),
			}

			if url := command.String("redis-url"); url != "" {
				locker, err := scheduler.NewRedisLocker(ctx, url, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := locker.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis locker", "error", err)
					}
				}()

				pollerOpts = append(pollerOpts, scheduler.WithLocker(locker))
			}

			worker := NewWorker(workerID, persistence, eventBus, runner, logger, pollerOpts...)

			err = worker.Run(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Worker stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
