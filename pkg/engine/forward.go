package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/relay/pkg/models"
)

var (
	ErrForwardCycle = errors.New("forward target is already running in this chain")
	ErrForwardDepth = errors.New("forward chain is too deep")
)

type chainKey struct{}

func chainFrom(ctx context.Context) []string {
	chain, _ := ctx.Value(chainKey{}).([]string)

	return chain
}

// withChain records automationID as the innermost automation of the forward chain.
func withChain(ctx context.Context, automationID string) context.Context {
	chain := chainFrom(ctx)
	if len(chain) > 0 && chain[len(chain)-1] == automationID {
		return ctx
	}

	return context.WithValue(ctx, chainKey{}, append(slices.Clone(chain), automationID))
}

// Forward starts target for contactID in the background. The new walk outlives ctx's
// cancellation but keeps its forward chain.
func (e *Engine) Forward(ctx context.Context, target *models.Automation, contactID string, vars map[string]any) error {
	chain := chainFrom(ctx)

	if slices.Contains(chain, target.ID) {
		return fmt.Errorf("%w: %s", ErrForwardCycle, target.ID)
	}

	if len(chain) >= e.maxForwardDepth {
		return fmt.Errorf("%w: %d automations", ErrForwardDepth, len(chain))
	}

	if target.Status != models.AutomationStatusActive {
		e.logger.WarnContext(ctx, "Forward target is not active, skipping",
			"target_automation_id", target.ID, "status", target.Status)

		return nil
	}

	runCtx := context.WithoutCancel(ctx)
	vars = cloneVars(vars)

	e.forwards.Add(1)

	go func() {
		defer e.forwards.Done()

		_, err := e.Run(runCtx, target, contactID, vars)
		if err != nil {
			e.logger.ErrorContext(runCtx, "Forwarded run failed",
				"automation_id", target.ID, "contact_id", contactID, "error", err)
		}
	}()

	return nil
}
