package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/relay/pkg/eventbus"
	"github.com/dukex/relay/pkg/events"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/scheduler"
	"github.com/dukex/relay/pkg/trigger"
)

// Runner is the run loop the worker drives. engine.Engine implements it.
type Runner interface {
	trigger.Runner
	scheduler.Resumer
	Wait()
}

type Worker struct {
	id         string
	logger     *slog.Logger
	eventBus   eventbus.EventBus
	dispatcher *trigger.Dispatcher
	poller     *scheduler.Poller
	runner     Runner
}

func NewWorker(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	runner Runner,
	logger *slog.Logger,
	pollerOpts ...scheduler.Option,
) *Worker {
	logger = logger.With("module", "relay-worker", "worker_id", id)

	return &Worker{
		id:         id,
		logger:     logger,
		eventBus:   eventBus,
		dispatcher: trigger.NewDispatcher(persistence, runner, logger),
		poller:     scheduler.NewPoller(persistence.DeferredTaskRepository(), runner, logger, pollerOpts...),
		runner:     runner,
	}
}

// Start subscribes to trigger events and starts the deferred task poller.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.TriggerReceivedEvent, w.handleTriggerReceived)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.poller.Start(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to start deferred task poller", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Stop halts the poller and waits for forwarded runs still in flight.
func (w *Worker) Stop(ctx context.Context) error {
	err := w.poller.Stop(ctx)

	w.runner.Wait()

	return err
}

// Run starts the worker and blocks until SIGINT, SIGTERM or ctx cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := w.Start(ctx)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return w.Stop(context.WithoutCancel(ctx))
}

func (w *Worker) handleTriggerReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.TriggerReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerReceived")

		return nil
	}

	logger := w.logger.With(
		"event_id", received.ID,
		"trigger_type", received.Trigger.Type,
		"contact_id", received.Trigger.ContactID,
	)
	logger.InfoContext(ctx, "Processing trigger event")

	summary, err := w.dispatcher.Dispatch(ctx, received.Trigger)
	if err != nil {
		if persistence.IsContactNotFound(err) {
			logger.WarnContext(ctx, "Trigger event names an unknown contact, dropped")

			return nil
		}

		logger.ErrorContext(ctx, "Failed to dispatch trigger event", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Trigger event dispatched",
		"matched", summary.Matched, "processed", summary.Processed, "failed", summary.Failed)

	return nil
}
