// Package engine walks automation graphs for one contact at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dukex/relay/pkg/condition"
	"github.com/dukex/relay/pkg/executor"
	"github.com/dukex/relay/pkg/log"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/otelhelper"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/router"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxSteps        = 500
	DefaultMaxForwardDepth = 5
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
	StatusAborted   Status = "aborted"
	StatusStepLimit Status = "step_limit"
	StatusSkipped   Status = "skipped"
)

// Result describes a finished walk. Stats holds the counters this walk added.
type Result struct {
	RunID        string       `json:"run_id"`
	AutomationID string       `json:"automation_id"`
	ContactID    string       `json:"contact_id"`
	Status       Status       `json:"status"`
	Visited      []string     `json:"visited"`
	Stats        models.Stats `json:"stats"`
	TaskID       string       `json:"task_id,omitempty"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Notifier is told about every walk that reached the graph.
type Notifier func(ctx context.Context, result *Result)

type Engine struct {
	automations persistence.AutomationRepository
	contacts    persistence.ContactRepository
	executor    *executor.Executor
	evaluator   *condition.Evaluator
	tracer      trace.Tracer
	notifier    Notifier
	logger      *slog.Logger

	maxSteps        int
	maxForwardDepth int
	now             func() time.Time
	httpClient      executor.HTTPDoer
	location        *time.Location

	forwards sync.WaitGroup
}

// New builds an engine whose executor forwards through the engine itself.
func New(store persistence.Persistence, messenger executor.Messenger, logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		automations:     store.AutomationRepository(),
		contacts:        store.ContactRepository(),
		tracer:          otelhelper.Tracer(),
		logger:          logger.With("module", "engine"),
		maxSteps:        DefaultMaxSteps,
		maxForwardDepth: DefaultMaxForwardDepth,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	engine.evaluator = condition.NewEvaluator(engine.location)

	executorOpts := []executor.Option{
		executor.WithForwarder(engine),
		executor.WithClock(engine.now),
	}
	if engine.httpClient != nil {
		executorOpts = append(executorOpts, executor.WithHTTPClient(engine.httpClient))
	}

	engine.executor = executor.New(store, messenger, logger, executorOpts...)

	return engine
}

// Run walks automation from its trigger node.
func (e *Engine) Run(ctx context.Context, automation *models.Automation, contactID string, vars map[string]any) (*Result, error) {
	trigger, err := automation.TriggerNode()
	if err != nil {
		e.logger.WarnContext(ctx, "Automation cannot start", "automation_id", automation.ID, "error", err)

		return e.newResult(automation, contactID, StatusAborted), nil
	}

	run := &executor.Run{
		ContactID: contactID,
		Vars:      cloneVars(vars),
	}

	return e.walk(ctx, automation, run, trigger.ID)
}

// Resume continues a suspended walk at the task's resume node.
func (e *Engine) Resume(ctx context.Context, task *models.DeferredTask) (*Result, error) {
	automation, err := e.automations.AutomationByID(ctx, task.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation for task %s: %w", task.ID, err)
	}

	if automation.Status != models.AutomationStatusActive {
		e.logger.InfoContext(ctx, "Automation is not active, task skipped",
			"automation_id", automation.ID, "task_id", task.ID, "status", automation.Status)

		return e.newResult(automation, task.ContactID, StatusSkipped), nil
	}

	run := &executor.Run{
		ContactID:    task.ContactID,
		ConnectionID: task.ConnectionID,
		Vars:         cloneVars(task.Context),
	}

	return e.walk(ctx, automation, run, task.ResumeNodeID)
}

// Wait blocks until every forwarded run has finished.
func (e *Engine) Wait() {
	e.forwards.Wait()
}

func (e *Engine) walk(ctx context.Context, automation *models.Automation, run *executor.Run, startID string) (*Result, error) {
	automation = automation.Clone()
	run.Automation = automation
	run.Routes = router.Build(automation.Edges)

	result := e.newResult(automation, run.ContactID, StatusCompleted)

	logger := e.logger.With(
		"automation_id", automation.ID,
		"contact_id", run.ContactID,
		"run_id", result.RunID,
	)

	if automation.NodeByID(startID) == nil {
		logger.WarnContext(ctx, "Start node not found, run aborted", "node_id", startID)

		result.Status = StatusAborted

		return result, nil
	}

	ctx = withChain(ctx, automation.ID)
	ctx = log.WithLogger(ctx, logger)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "automation.run",
		attribute.String(otelhelper.AutomationIDKey, automation.ID),
		attribute.String(otelhelper.AutomationNameKey, automation.Name),
		attribute.String(otelhelper.ContactIDKey, run.ContactID),
		attribute.String(otelhelper.RunIDKey, result.RunID),
	)
	defer span.End()

	logger.InfoContext(ctx, "Run started", "start_node_id", startID)

	current := startID

	for current != "" {
		if len(result.Visited) >= e.maxSteps {
			logger.WarnContext(ctx, "Step limit reached, run stopped", "max_steps", e.maxSteps, "node_id", current)

			result.Status = StatusStepLimit

			break
		}

		node := automation.NodeByID(current)
		if node == nil {
			logger.WarnContext(ctx, "Route points to an unknown node, run ended", "node_id", current)

			break
		}

		result.Visited = append(result.Visited, node.ID)

		outcome, err := e.execute(ctx, run, node)
		if err != nil {
			e.count(result.Stats, node.ID, false)

			if errors.Is(err, executor.ErrSuspendFailed) {
				logger.ErrorContext(ctx, "Wait could not be persisted, run ended", "node_id", node.ID, "error", err)

				result.Status = StatusAborted

				break
			}

			logger.ErrorContext(ctx, "Node failed, continuing", "node_id", node.ID, "subtype", node.Subtype, "error", err)

			current = run.Routes.Next[node.ID]

			continue
		}

		e.count(result.Stats, node.ID, true)

		if outcome.Suspend {
			result.Status = StatusSuspended
			result.TaskID = outcome.TaskID

			break
		}

		next, err := e.nextNode(ctx, run, node)
		if err != nil {
			result.Status = StatusAborted

			otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))
			logger.ErrorContext(ctx, "Path selection failed, run aborted", "node_id", node.ID, "error", err)

			e.finish(ctx, logger, automation, result)

			return result, fmt.Errorf("failed to select path after node %s: %w", node.ID, err)
		}

		current = next
	}

	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(result.Status)))

	e.finish(ctx, logger, automation, result)

	return result, nil
}

func (e *Engine) execute(ctx context.Context, run *executor.Run, node *models.Node) (executor.Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "automation.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeSubtypeKey, string(node.Subtype)),
	)
	defer span.End()

	outcome, err := e.executor.Execute(ctx, run, node)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return outcome, err
}

// nextNode picks the node after a successful step. An empty id ends the walk.
func (e *Engine) nextNode(ctx context.Context, run *executor.Run, node *models.Node) (string, error) {
	switch data := node.Data.(type) {
	case *models.ConditionalAction:
		contact, err := e.contacts.ContactByID(ctx, run.ContactID)
		if err != nil {
			return "", fmt.Errorf("failed to fetch contact: %w", err)
		}

		matched, err := e.evaluator.EvaluateAll(data.Logic, data.Conditions, contact, e.now())
		if err != nil {
			return "", err
		}

		next, _ := run.Routes.Branch(node.ID, matched)

		return next, nil
	case *models.RandomizerAction:
		branches := run.Routes.Branches[node.ID]
		if len(branches) == 0 {
			return "", nil
		}

		return branches[rand.IntN(len(branches))], nil
	default:
		return run.Routes.Next[node.ID], nil
	}
}

func (e *Engine) count(stats models.Stats, nodeID string, success bool) {
	current := stats[nodeID]
	current.Total++

	if success {
		current.Success++
	} else {
		current.Error++
	}

	stats[nodeID] = current
}

// finish flushes the walk's counters and notifies.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, automation *models.Automation, result *Result) {
	result.FinishedAt = e.now().UTC()

	if len(result.Stats) > 0 {
		automation.Stats.Add(result.Stats)

		err := e.automations.IncrementNodeStats(context.WithoutCancel(ctx), automation.ID, result.Stats)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to flush statistics", "error", err)
		}
	}

	logger.InfoContext(ctx, "Run finished", "status", result.Status, "visited", len(result.Visited))

	if e.notifier != nil {
		e.notifier(ctx, result)
	}
}

func (e *Engine) newResult(automation *models.Automation, contactID string, status Status) *Result {
	return &Result{
		RunID:        uuid.Must(uuid.NewV7()).String(),
		AutomationID: automation.ID,
		ContactID:    contactID,
		Status:       status,
		Visited:      []string{},
		Stats:        models.Stats{},
		FinishedAt:   e.now().UTC(),
	}
}

func cloneVars(vars map[string]any) map[string]any {
	clone := make(map[string]any, len(vars))
	for k, v := range vars {
		clone[k] = v
	}

	return clone
}
