package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/otelhelper"
	"github.com/dukex/relay/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

var ErrMissingContact = errors.New("webhook payload has no contact_id")

// Runner starts a walk of one automation. engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, automation *models.Automation, contactID string, vars map[string]any) (*engine.Result, error)
}

// Summary counts what a dispatch did.
type Summary struct {
	Matched   int              `json:"matched"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Results   []*engine.Result `json:"results,omitempty"`
}

type Dispatcher struct {
	matcher     *Matcher
	runner      Runner
	automations persistence.AutomationRepository
	enrollments persistence.EnrollmentRepository
	logger      *slog.Logger
}

func NewDispatcher(store persistence.Persistence, runner Runner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		matcher:     NewMatcher(store, logger),
		runner:      runner,
		automations: store.AutomationRepository(),
		enrollments: store.EnrollmentRepository(),
		logger:      logger.With("module", "trigger_dispatcher"),
	}
}

// Dispatch runs every matching automation one after another. A failed run is
// counted and does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.TriggerEvent) (Summary, error) {
	ctx, span := otelhelper.StartSpan(ctx, otelhelper.Tracer(), "trigger.dispatch",
		attribute.String(otelhelper.TriggerTypeKey, string(event.Type)),
		attribute.String(otelhelper.ContactIDKey, event.ContactID),
		attribute.String(otelhelper.WebhookIDKey, event.WebhookID),
	)
	defer span.End()

	matches, err := d.matcher.Match(ctx, event)
	if err != nil {
		otelhelper.SetError(span, err)

		return Summary{}, err
	}

	summary := Summary{Matched: len(matches)}
	vars := event.Vars()

	for _, match := range matches {
		logger := d.logger.With("automation_id", match.Automation.ID, "contact_id", event.ContactID)

		err := d.enroll(ctx, match.Automation.ID, event.ContactID)
		if err != nil {
			logger.WarnContext(ctx, "Failed to record enrollment", "error", err)
		}

		result, err := d.runner.Run(ctx, match.Automation, event.ContactID, vars)
		if err != nil {
			summary.Failed++

			logger.ErrorContext(ctx, "Automation run failed", "error", err)

			continue
		}

		summary.Processed++
		summary.Results = append(summary.Results, result)
	}

	return summary, nil
}

// DispatchWebhook runs the automation owning webhookID. The payload must name the contact.
func (d *Dispatcher) DispatchWebhook(ctx context.Context, webhookID string, payload map[string]any) (Summary, error) {
	automation, err := d.automations.AutomationByWebhookID(ctx, webhookID)
	if err != nil {
		return Summary{}, err
	}

	contactID, _ := payload["contact_id"].(string)
	if contactID == "" {
		return Summary{}, ErrMissingContact
	}

	return d.Dispatch(ctx, models.TriggerEvent{
		Type:         models.SubtypeWebhook,
		ContactID:    contactID,
		WebhookID:    webhookID,
		Payload:      payload,
		AutomationID: automation.ID,
	})
}

func (d *Dispatcher) enroll(ctx context.Context, automationID, contactID string) error {
	err := d.enrollments.RecordEnrollment(ctx, &models.Enrollment{
		AutomationID: automationID,
		ContactID:    contactID,
	})
	if err != nil {
		return fmt.Errorf("failed to record enrollment: %w", err)
	}

	return nil
}
