package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/eventbus"
	"github.com/dukex/relay/pkg/events"
	"github.com/dukex/relay/pkg/messaging"
	"github.com/dukex/relay/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// EngineConfig carries the flag values both binaries feed into the run loop.
type EngineConfig struct {
	WhatsAppBaseURL string
	MaxSteps        int
	MaxForwardDepth int
	Timezone        string
	Publisher       eventbus.EventPublisher
	WorkerID        string
	Tracer          trace.Tracer
}

// NewEngine wires the WhatsApp messenger and, when a publisher is set, RunFinished notifications.
func NewEngine(store persistence.Persistence, logger *slog.Logger, config EngineConfig) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithMaxSteps(config.MaxSteps),
		engine.WithMaxForwardDepth(config.MaxForwardDepth),
	}

	if config.Timezone != "" {
		location, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", config.Timezone, err)
		}

		opts = append(opts, engine.WithLocation(location))
	}

	if config.Tracer != nil {
		opts = append(opts, engine.WithTracer(config.Tracer))
	}

	if config.Publisher != nil {
		opts = append(opts, engine.WithNotifier(NewRunNotifier(config.Publisher, config.WorkerID, logger)))
	}

	messenger := messaging.NewClient(config.WhatsAppBaseURL, logger)

	return engine.New(store, messenger, logger, opts...), nil
}

// NewRunNotifier publishes a RunFinished event per walk. Publish failures are logged only.
func NewRunNotifier(publisher eventbus.EventPublisher, workerID string, logger *slog.Logger) engine.Notifier {
	logger = logger.With("module", "run_notifier")

	return func(ctx context.Context, result *engine.Result) {
		event := events.NewRunFinished(result.RunID, result.AutomationID, result.ContactID, string(result.Status))
		event.WorkerID = workerID
		event.Visited = result.Visited
		event.Stats = result.Stats
		event.TaskID = result.TaskID

		err := publisher.Publish(ctx, result.ContactID, event)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to publish run finished event", "error", err, "run_id", result.RunID)
		}
	}
}
