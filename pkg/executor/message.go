package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/template"
)

func (e *Executor) sendMessage(ctx context.Context, run *Run, node *models.Node, data *models.SendMessageAction) error {
	logger := e.nodeLogger(ctx, run, node)

	contact, err := e.contact(ctx, run)
	if err != nil {
		return err
	}

	vars := run.Context(contact)

	var (
		externalID string
		content    string
	)

	switch data.MessageType {
	case models.MessageTypeText, "":
		connection, err := e.connection(ctx, run)
		if err != nil {
			return err
		}

		content = template.Interpolate(data.Text, vars)

		externalID, err = e.messenger.SendText(ctx, connection, contact.Phone, content)
		if err != nil {
			return fmt.Errorf("failed to send text message: %w", err)
		}
	case models.MessageTypeTemplate:
		tmpl, err := e.templates.TemplateByID(ctx, data.TemplateID)
		if err != nil {
			if persistence.IsTemplateNotFound(err) {
				logger.WarnContext(ctx, "Template not found, message not sent", "template_id", data.TemplateID)

				return nil
			}

			return fmt.Errorf("failed to fetch template: %w", err)
		}

		if !tmpl.IsApproved() {
			logger.WarnContext(ctx, "Template is not approved, message not sent",
				"template_id", data.TemplateID, "status", tmpl.Status)

			return nil
		}

		connection, err := e.connection(ctx, run)
		if err != nil {
			return err
		}

		parameters := make([]string, len(data.Parameters))
		for i, parameter := range data.Parameters {
			parameters[i] = template.Interpolate(parameter, vars)
		}

		externalID, err = e.messenger.SendTemplate(ctx, connection, contact.Phone, tmpl, parameters)
		if err != nil {
			return fmt.Errorf("failed to send template message: %w", err)
		}

		content = tmpl.Name
		if len(parameters) > 0 {
			content += " (" + strings.Join(parameters, ", ") + ")"
		}
	case models.MessageTypeFlow:
		connection, err := e.connection(ctx, run)
		if err != nil {
			return err
		}

		flow := models.FlowMessage{
			FlowID: data.FlowID,
			CTA:    template.Interpolate(data.FlowCTA, vars),
			Body:   template.Interpolate(data.FlowBody, vars),
		}

		externalID, err = e.messenger.SendFlow(ctx, connection, contact.Phone, flow)
		if err != nil {
			return fmt.Errorf("failed to send flow message: %w", err)
		}

		content = flow.Body
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, data.MessageType)
	}

	messageType := data.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	err = e.messages.SaveMessage(ctx, &models.Message{
		ContactID:    contact.ID,
		ConnectionID: run.ConnectionID,
		AutomationID: run.Automation.ID,
		ExternalID:   externalID,
		Direction:    models.MessageDirectionOutbound,
		Type:         messageType,
		Content:      content,
	})
	if err != nil {
		logger.WarnContext(ctx, "Message sent but not logged", "error", err)
	}

	return nil
}

// connection resolves the run's connection, falling back to the active one.
func (e *Executor) connection(ctx context.Context, run *Run) (*models.Connection, error) {
	if run.ConnectionID != "" {
		connection, err := e.connections.ConnectionByID(ctx, run.ConnectionID)
		if err == nil {
			return connection, nil
		}

		if !persistence.IsConnectionNotFound(err) {
			return nil, fmt.Errorf("failed to fetch connection: %w", err)
		}
	}

	connection, err := e.connections.ActiveConnection(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrConnectionNotFound) {
			return nil, ErrNoConnection
		}

		return nil, fmt.Errorf("failed to fetch active connection: %w", err)
	}

	return connection, nil
}
