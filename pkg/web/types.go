package web

import "github.com/dukex/relay/pkg/models"

// AutomationRequest is the body of automation create and update calls.
type AutomationRequest struct {
	Name              string                  `json:"name"               validate:"required,min=3"`
	Status            models.AutomationStatus `json:"status"             validate:"omitempty,oneof=active paused draft"`
	Nodes             []*models.Node          `json:"nodes"              validate:"required,min=1"`
	Edges             []*models.Edge          `json:"edges"`
	AllowReactivation bool                    `json:"allow_reactivation"`
	BlockOnOpenChat   bool                    `json:"block_on_open_chat"`
}

func (r AutomationRequest) automation() *models.Automation {
	return &models.Automation{
		Name:              r.Name,
		Status:            r.Status,
		Nodes:             r.Nodes,
		Edges:             r.Edges,
		AllowReactivation: r.AllowReactivation,
		BlockOnOpenChat:   r.BlockOnOpenChat,
	}
}

// StatusRequest switches an automation between active, paused and draft.
type StatusRequest struct {
	Status models.AutomationStatus `json:"status" validate:"required,oneof=active paused draft"`
}

// EventAccepted acknowledges a domain event queued for the workers.
type EventAccepted struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}
