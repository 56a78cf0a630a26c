// Package main provides the relay API server: automation admin endpoints and the inbound trigger surface.
package main

import (
	"context"
	"os"

	"github.com/dukex/relay/pkg/cmd"
	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/log"
	"github.com/dukex/relay/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "relay-api",
		Usage:                 "Manage automations and receive trigger events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers used by the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
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

			logger := log.WithModule("relay-api")

			logger.InfoContext(ctx, "Initializing Relay API")

			var tracer trace.Tracer

			if command.Bool("otel-enabled") {
				otelTracer, shutdown, err := otelhelper.NewTracer(ctx, "relay-api")
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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "relay-api", command.StringSlice("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runner, err := cmd.NewEngine(persistence, logger, cmd.EngineConfig{
				WhatsAppBaseURL: command.String("whatsapp-base-url"),
				MaxSteps:        command.Int("max-steps"),
				MaxForwardDepth: command.Int("max-forward-depth"),
				Timezone:        command.String("timezone"),
				Publisher:       eventBus,
				Tracer:          tracer,
				WorkerID:        "relay-api",
			})
			if err != nil {
				return err
			}

			defer runner.Wait()

			api := NewAPI(logger, persistence, eventBus, runner)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
