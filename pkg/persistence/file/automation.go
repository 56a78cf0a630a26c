package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
)

// AutomationRepository handles automation-related file operations.
type AutomationRepository struct {
	mu          *sync.Mutex
	automations *collection[models.Automation]
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(root string, mu *sync.Mutex) *AutomationRepository {
	return &AutomationRepository{
		mu:          mu,
		automations: newCollection[models.Automation](root, "automations"),
	}
}

// Automations returns every automation, oldest first.
func (r *AutomationRepository) Automations(_ context.Context) ([]*models.Automation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	automations, err := r.automations.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	sort.SliceStable(automations, func(i, j int) bool {
		if automations[i].CreatedAt.Equal(automations[j].CreatedAt) {
			return automations[i].ID < automations[j].ID
		}

		return automations[i].CreatedAt.Before(automations[j].CreatedAt)
	})

	return automations, nil
}

func (r *AutomationRepository) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load("AutomationByID", id)
}

func (r *AutomationRepository) load(op, id string) (*models.Automation, error) {
	automation, err := r.automations.get(id)
	if err != nil {
		return nil, persistence.NewAutomationError(op, id, err)
	}

	if automation == nil {
		return nil, persistence.NewAutomationError(op, id, persistence.ErrAutomationNotFound)
	}

	if automation.Stats == nil {
		automation.Stats = make(models.Stats)
	}

	return automation, nil
}

func (r *AutomationRepository) AutomationByWebhookID(ctx context.Context, webhookID string) (*models.Automation, error) {
	automations, err := r.Automations(ctx)
	if err != nil {
		return nil, err
	}

	for _, automation := range automations {
		for _, node := range automation.Nodes {
			trigger, ok := node.Data.(*models.WebhookTrigger)
			if ok && trigger.WebhookID == webhookID {
				return automation, nil
			}
		}
	}

	return nil, persistence.NewAutomationError("AutomationByWebhookID", webhookID, persistence.ErrAutomationNotFound)
}

// SaveAutomation saves an automation to the file system, assigning an id when it has none.
func (r *AutomationRepository) SaveAutomation(_ context.Context, automation *models.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate automation ID: %w", err)
		}

		automation.ID = id.String()
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	if automation.Stats == nil {
		automation.Stats = make(models.Stats)
	}

	err := r.automations.put(automation.ID, automation)
	if err != nil {
		return persistence.NewAutomationError("SaveAutomation", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) DeleteAutomation(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existed, err := r.automations.remove(id)
	if err != nil {
		return persistence.NewAutomationError("DeleteAutomation", id, err)
	}

	if !existed {
		return persistence.NewAutomationError("DeleteAutomation", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

// IncrementNodeStats adds delta to the stored counters under the repository lock.
func (r *AutomationRepository) IncrementNodeStats(_ context.Context, automationID string, delta models.Stats) error {
	if len(delta) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	automation, err := r.load("IncrementNodeStats", automationID)
	if err != nil {
		return err
	}

	automation.Stats.Add(delta)

	err = r.automations.put(automation.ID, automation)
	if err != nil {
		return persistence.NewAutomationError("IncrementNodeStats", automationID, err)
	}

	return nil
}
