package executor

import (
	"context"
	"fmt"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
)

func (e *Executor) forward(ctx context.Context, run *Run, node *models.Node, data *models.ForwardAutomationAction) error {
	logger := e.nodeLogger(ctx, run, node)

	if e.forwarder == nil {
		logger.WarnContext(ctx, "No forwarder configured, skipping")

		return nil
	}

	target, err := e.automations.AutomationByID(ctx, data.AutomationID)
	if err != nil {
		if persistence.IsAutomationNotFound(err) {
			logger.WarnContext(ctx, "Forward target not found", "target_automation_id", data.AutomationID)

			return nil
		}

		return fmt.Errorf("failed to fetch forward target: %w", err)
	}

	err = e.forwarder.Forward(ctx, target, run.ContactID, run.Vars)
	if err != nil {
		return fmt.Errorf("failed to forward to automation %s: %w", target.ID, err)
	}

	return nil
}
