package executor

import (
	"context"
	"fmt"

	"github.com/dukex/relay/pkg/models"
)

// wait persists the continuation at the node after this one and suspends the run.
// Without a next node there is nothing to resume, so the step is skipped.
func (e *Executor) wait(ctx context.Context, run *Run, node *models.Node, data *models.WaitAction) (Outcome, error) {
	next, ok := run.Routes.Next[node.ID]
	if !ok {
		e.nodeLogger(ctx, run, node).InfoContext(ctx, "Wait has no next node, skipping")

		return Outcome{}, nil
	}

	fireAt := e.now().UTC().Add(data.Unit.Duration(data.Delay))

	task := &models.DeferredTask{
		AutomationID: run.Automation.ID,
		ContactID:    run.ContactID,
		ResumeNodeID: next,
		FireAt:       fireAt,
		Context:      run.Vars,
		ConnectionID: run.ConnectionID,
	}

	err := e.tasks.CreateTask(ctx, task)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrSuspendFailed, err)
	}

	e.nodeLogger(ctx, run, node).InfoContext(ctx, "Run suspended",
		"task_id", task.ID, "resume_node_id", next, "fire_at", fireAt)

	return Outcome{Suspend: true, TaskID: task.ID, FireAt: fireAt}, nil
}
