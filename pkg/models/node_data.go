package models

import "time"

// NodeData is the payload of a node. Each subtype has exactly one implementation.
type NodeData interface {
	nodeData()
}

type ContactCreatedTrigger struct{}

type TagAddedTrigger struct {
	Tag string `json:"tag"`
}

type CRMStageChangedTrigger struct {
	BoardID string `json:"board_id"`
	StageID string `json:"stage_id"`
}

// MessageMatch is how an inbound message is compared against a context_message trigger.
type MessageMatch string

const (
	MessageMatchAny      MessageMatch = "any"
	MessageMatchContains MessageMatch = "contains"
	MessageMatchExact    MessageMatch = "exact"
)

type ContextMessageTrigger struct {
	Match MessageMatch `json:"match"`
	Text  string       `json:"text"`
}

type WebhookTrigger struct {
	WebhookID string `json:"webhook_id"`
}

// MessageType selects the flavor of an outbound message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeTemplate MessageType = "template"
	MessageTypeFlow     MessageType = "flow"
)

type SendMessageAction struct {
	MessageType MessageType `json:"message_type"`
	Text        string      `json:"text,omitempty"`
	TemplateID  string      `json:"template_id,omitempty"`
	Parameters  []string    `json:"parameters,omitempty"`
	FlowID      string      `json:"flow_id,omitempty"`
	FlowCTA     string      `json:"flow_cta,omitempty"`
	FlowBody    string      `json:"flow_body,omitempty"`
}

// DelayUnit is the unit of a wait node delay.
type DelayUnit string

const (
	DelayUnitSeconds DelayUnit = "seconds"
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// Duration converts an amount of this unit into a time.Duration.
// Unknown units are read as minutes.
func (u DelayUnit) Duration(amount int) time.Duration {
	switch u {
	case DelayUnitSeconds:
		return time.Duration(amount) * time.Second
	case DelayUnitHours:
		return time.Duration(amount) * time.Hour
	case DelayUnitDays:
		return time.Duration(amount) * 24 * time.Hour
	default:
		return time.Duration(amount) * time.Minute
	}
}

type WaitAction struct {
	Delay int       `json:"delay"`
	Unit  DelayUnit `json:"unit"`
}

// TagAction is shared by add_tag and remove_tag.
type TagAction struct {
	TagName string `json:"tag_name"`
}

type MoveCRMStageAction struct {
	StageID string `json:"stage_id"`
}

type OptOutAction struct{}

type ForwardAutomationAction struct {
	AutomationID string `json:"automation_id"`
}

// ResponseMapping copies the value at Path in a JSON response onto a contact field.
type ResponseMapping struct {
	Path  string `json:"path"`
	Field string `json:"field"`
}

type HTTPRequestAction struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutSeconds  int               `json:"timeout_seconds,omitempty"`
	ResponseMapping []ResponseMapping `json:"response_mapping,omitempty"`
}

// Logic combines the conditions of a conditional node.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

type ConditionalAction struct {
	Logic      Logic      `json:"logic"`
	Conditions Conditions `json:"conditions"`
}

// RandomizerAction has no settings; its branches are the outgoing branch-N edges.
type RandomizerAction struct{}

func (*ContactCreatedTrigger) nodeData()   {}
func (*TagAddedTrigger) nodeData()         {}
func (*CRMStageChangedTrigger) nodeData()  {}
func (*ContextMessageTrigger) nodeData()   {}
func (*WebhookTrigger) nodeData()          {}
func (*SendMessageAction) nodeData()       {}
func (*WaitAction) nodeData()              {}
func (*TagAction) nodeData()               {}
func (*MoveCRMStageAction) nodeData()      {}
func (*OptOutAction) nodeData()            {}
func (*ForwardAutomationAction) nodeData() {}
func (*HTTPRequestAction) nodeData()       {}
func (*ConditionalAction) nodeData()       {}
func (*RandomizerAction) nodeData()        {}
