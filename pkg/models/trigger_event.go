package models

// TriggerEvent is a domain event that may start automations for one contact.
type TriggerEvent struct {
	Type        NodeSubtype    `json:"type"                    validate:"required"`
	ContactID   string         `json:"contact_id"              validate:"required"`
	TagName     string         `json:"tag_name,omitempty"`
	BoardID     string         `json:"board_id,omitempty"`
	StageID     string         `json:"stage_id,omitempty"`
	MessageText string         `json:"message_text,omitempty"`
	WebhookID   string         `json:"webhook_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`

	// AutomationID narrows matching to a single automation.
	AutomationID string `json:"automation_id,omitempty"`
}

// Vars returns the non-contact part of a run context built from the event.
func (e TriggerEvent) Vars() map[string]any {
	event := map[string]any{
		"type":       string(e.Type),
		"contact_id": e.ContactID,
	}

	if e.TagName != "" {
		event["tag_name"] = e.TagName
	}

	if e.BoardID != "" {
		event["board_id"] = e.BoardID
	}

	if e.StageID != "" {
		event["stage_id"] = e.StageID
	}

	for k, v := range e.Payload {
		if _, exists := event[k]; !exists {
			event[k] = v
		}
	}

	vars := map[string]any{"event": event}

	if e.MessageText != "" {
		vars["message"] = map[string]any{"text": e.MessageText}
	}

	if e.Type == SubtypeWebhook {
		vars["webhook"] = e.Payload
	}

	return vars
}
