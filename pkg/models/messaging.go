package models

import "time"

// TemplateStatus mirrors the review state of a messaging template.
type TemplateStatus string

const (
	TemplateStatusApproved TemplateStatus = "APPROVED"
	TemplateStatusPending  TemplateStatus = "PENDING"
	TemplateStatusRejected TemplateStatus = "REJECTED"
)

// Template is a pre-approved message registered with the messaging provider.
type Template struct {
	ID       string         `json:"id"       validate:"required"`
	Name     string         `json:"name"     validate:"required"`
	Language string         `json:"language" validate:"required"`
	Category string         `json:"category,omitempty"`
	Status   TemplateStatus `json:"status"   validate:"required"`
}

// IsApproved reports whether the template can be sent.
func (t *Template) IsApproved() bool {
	return t.Status == TemplateStatusApproved
}

// Connection is the outbound messaging account used to reach contacts.
type Connection struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PhoneNumberID string    `json:"phone_number_id" validate:"required"`
	AccessToken   string    `json:"access_token"    validate:"required"`
	APIVersion    string    `json:"api_version,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageDirection tells inbound and outbound log entries apart.
type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

// Message is one entry of a contact's conversation log.
type Message struct {
	ID           string           `json:"id"`
	ContactID    string           `json:"contact_id"`
	ConnectionID string           `json:"connection_id,omitempty"`
	AutomationID string           `json:"automation_id,omitempty"`
	ExternalID   string           `json:"external_id,omitempty"`
	Direction    MessageDirection `json:"direction"`
	Type         MessageType      `json:"type"`
	Content      string           `json:"content"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Board is a CRM pipeline made of ordered stages.
type Board struct {
	ID     string   `json:"id"     validate:"required"`
	Name   string   `json:"name"   validate:"required"`
	Stages []*Stage `json:"stages" validate:"dive"`
}

// Stage is a column of a board. Tags are applied to contacts moved into it.
type Stage struct {
	ID      string   `json:"id"   validate:"required"`
	BoardID string   `json:"board_id"`
	Name    string   `json:"name" validate:"required"`
	Tags    []string `json:"tags,omitempty"`
}

// FlowMessage is an interactive flow invitation.
type FlowMessage struct {
	FlowID string `json:"flow_id"`
	CTA    string `json:"cta"`
	Body   string `json:"body"`
}
