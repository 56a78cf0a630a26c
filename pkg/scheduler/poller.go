// Package scheduler resumes suspended automation runs once their deferred task is due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/otelhelper"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultSchedule  = "@every 30s"
	DefaultBatchSize = 100
)

// Resumer continues a suspended run. engine.Engine implements it.
type Resumer interface {
	Resume(ctx context.Context, task *models.DeferredTask) (*engine.Result, error)
}

// TickResult counts what one poll did.
type TickResult struct {
	Claimed   int
	Processed int
	Failed    int
}

type Poller struct {
	tasks     persistence.DeferredTaskRepository
	resumer   Resumer
	locker    Locker
	schedule  string
	batchSize int
	now       func() time.Time
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Poller)

func WithSchedule(schedule string) Option {
	return func(p *Poller) {
		if schedule != "" {
			p.schedule = schedule
		}
	}
}

func WithLocker(locker Locker) Option {
	return func(p *Poller) {
		if locker != nil {
			p.locker = locker
		}
	}
}

func WithBatchSize(size int) Option {
	return func(p *Poller) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

func NewPoller(tasks persistence.DeferredTaskRepository, resumer Resumer, logger *slog.Logger, opts ...Option) *Poller {
	poller := &Poller{
		tasks:     tasks,
		resumer:   resumer,
		locker:    NoopLocker{},
		schedule:  DefaultSchedule,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    logger.With("module", "poller"),
	}

	for _, opt := range opts {
		opt(poller)
	}

	return poller
}

// Start registers the tick on a cron scheduler. Overlapping ticks are skipped.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return errors.New("poller already started")
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(p.logger.Handler(), slog.LevelDebug))

	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	_, err := c.AddFunc(p.schedule, func() {
		_, err := p.Tick(ctx)
		if err != nil {
			p.logger.ErrorContext(ctx, "Poll failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", p.schedule, err)
	}

	c.Start()
	p.cron = c

	p.logger.InfoContext(ctx, "Poller started", "schedule", p.schedule, "batch_size", p.batchSize)

	return nil
}

// Stop waits for a running tick to finish, or for ctx to end.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		p.logger.InfoContext(ctx, "Poller stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick claims due tasks and resumes them one by one.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	release, err := p.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			p.logger.DebugContext(ctx, "Another worker is polling, tick skipped")

			return TickResult{}, nil
		}

		return TickResult{}, err
	}

	defer func() {
		err := release(context.WithoutCancel(ctx))
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to release poller lock", "error", err)
		}
	}()

	tasks, err := p.tasks.ClaimDueTasks(ctx, p.now().UTC(), p.batchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to claim due tasks: %w", err)
	}

	result := TickResult{Claimed: len(tasks)}

	for _, task := range tasks {
		if p.resume(ctx, task) {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	if result.Claimed > 0 {
		p.logger.InfoContext(ctx, "Deferred tasks processed",
			"claimed", result.Claimed, "processed", result.Processed, "failed", result.Failed)
	}

	return result, nil
}

func (p *Poller) resume(ctx context.Context, task *models.DeferredTask) bool {
	logger := p.logger.With("task_id", task.ID, "automation_id", task.AutomationID, "contact_id", task.ContactID)

	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "deferred_task.resume",
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.AutomationIDKey, task.AutomationID),
	)
	defer span.End()

	run, err := p.resumer.Resume(ctx, task)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to resume task", "error", err)

		markErr := p.tasks.MarkFailed(context.WithoutCancel(ctx), task.ID, err.Error())
		if markErr != nil {
			logger.ErrorContext(ctx, "Failed to mark task as failed", "error", markErr)
		}

		return false
	}

	err = p.tasks.MarkProcessed(context.WithoutCancel(ctx), task.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark task as processed", "error", err)
	}

	if run != nil {
		logger.DebugContext(ctx, "Task resumed", "status", run.Status, "visited", len(run.Visited))
	}

	return true
}
