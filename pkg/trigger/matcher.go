// Package trigger decides which automations a domain event starts and runs them.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
)

// Match pairs an automation with the trigger node that accepted the event.
type Match struct {
	Automation *models.Automation
	Trigger    *models.Node
}

// Matcher applies the contact and automation gates to an event.
type Matcher struct {
	automations persistence.AutomationRepository
	contacts    persistence.ContactRepository
	connections persistence.ConnectionRepository
	enrollments persistence.EnrollmentRepository
	logger      *slog.Logger
}

func NewMatcher(store persistence.Persistence, logger *slog.Logger) *Matcher {
	return &Matcher{
		automations: store.AutomationRepository(),
		contacts:    store.ContactRepository(),
		connections: store.ConnectionRepository(),
		enrollments: store.EnrollmentRepository(),
		logger:      logger.With("module", "trigger_matcher"),
	}
}

// Match returns the automations event should start, in catalog order.
func (m *Matcher) Match(ctx context.Context, event models.TriggerEvent) ([]Match, error) {
	logger := m.logger.With("trigger_type", event.Type, "contact_id", event.ContactID)

	contact, err := m.contacts.ContactByID(ctx, event.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}

	if contact.OptedOut {
		logger.DebugContext(ctx, "Contact opted out, no automation started")

		return nil, nil
	}

	_, err = m.connections.ActiveConnection(ctx)
	if err != nil {
		if persistence.IsConnectionNotFound(err) {
			logger.WarnContext(ctx, "No active messaging connection, no automation started")

			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch active connection: %w", err)
	}

	candidates, err := m.candidates(ctx, event)
	if err != nil {
		return nil, err
	}

	var matches []Match

	for _, automation := range candidates {
		if automation.Status != models.AutomationStatusActive {
			continue
		}

		if automation.BlockOnOpenChat && contact.WindowOpen {
			logger.DebugContext(ctx, "Conversation is open, automation blocked", "automation_id", automation.ID)

			continue
		}

		if !automation.AllowReactivation {
			enrolled, err := m.enrollments.HasEnrollment(ctx, automation.ID, contact.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check enrollment: %w", err)
			}

			if enrolled {
				logger.DebugContext(ctx, "Contact already enrolled, automation skipped", "automation_id", automation.ID)

				continue
			}
		}

		trigger := acceptingTrigger(automation, event)
		if trigger == nil {
			continue
		}

		matches = append(matches, Match{Automation: automation, Trigger: trigger})
	}

	logger.InfoContext(ctx, "Completed trigger matching", "candidates", len(candidates), "matches_found", len(matches))

	return matches, nil
}

func (m *Matcher) candidates(ctx context.Context, event models.TriggerEvent) ([]*models.Automation, error) {
	if event.AutomationID == "" {
		automations, err := m.automations.Automations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list automations: %w", err)
		}

		return automations, nil
	}

	automation, err := m.automations.AutomationByID(ctx, event.AutomationID)
	if err != nil {
		if persistence.IsAutomationNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch automation: %w", err)
	}

	return []*models.Automation{automation}, nil
}

func acceptingTrigger(automation *models.Automation, event models.TriggerEvent) *models.Node {
	for _, node := range automation.Nodes {
		if node.Kind != models.NodeKindTrigger || node.Subtype != event.Type {
			continue
		}

		if accepts(node.Data, event) {
			return node
		}
	}

	return nil
}

// accepts reports whether a trigger payload admits the event. Empty filters are wildcards.
func accepts(data models.NodeData, event models.TriggerEvent) bool {
	switch trigger := data.(type) {
	case *models.ContactCreatedTrigger, *models.WebhookTrigger:
		return true
	case *models.TagAddedTrigger:
		return trigger.Tag == "" || trigger.Tag == event.TagName
	case *models.CRMStageChangedTrigger:
		if trigger.BoardID != "" && trigger.BoardID != event.BoardID {
			return false
		}

		return trigger.StageID == "" || trigger.StageID == event.StageID
	case *models.ContextMessageTrigger:
		switch trigger.Match {
		case models.MessageMatchAny, "":
			return true
		case models.MessageMatchContains:
			return strings.Contains(strings.ToLower(event.MessageText), strings.ToLower(trigger.Text))
		case models.MessageMatchExact:
			return strings.EqualFold(strings.TrimSpace(event.MessageText), strings.TrimSpace(trigger.Text))
		default:
			return false
		}
	default:
		return false
	}
}
