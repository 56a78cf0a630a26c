package models

import (
	"encoding/json"
	"fmt"
)

// NodeKind separates the entry point of an automation from the nodes it walks.
type NodeKind string

const (
	NodeKindTrigger NodeKind = "trigger"
	NodeKindAction  NodeKind = "action"
)

// NodeSubtype identifies the behavior of a node and the shape of its payload.
type NodeSubtype string

const (
	SubtypeContactCreated  NodeSubtype = "contact_created"
	SubtypeTagAdded        NodeSubtype = "tag_added"
	SubtypeCRMStageChanged NodeSubtype = "crm_stage_changed"
	SubtypeContextMessage  NodeSubtype = "context_message"
	SubtypeWebhook         NodeSubtype = "webhook"

	SubtypeSendMessage       NodeSubtype = "send_message"
	SubtypeWait              NodeSubtype = "wait"
	SubtypeAddTag            NodeSubtype = "add_tag"
	SubtypeRemoveTag         NodeSubtype = "remove_tag"
	SubtypeMoveCRMStage      NodeSubtype = "move_crm_stage"
	SubtypeOptOut            NodeSubtype = "opt_out"
	SubtypeForwardAutomation NodeSubtype = "forward_automation"
	SubtypeHTTPRequest       NodeSubtype = "http_request"
	SubtypeConditional       NodeSubtype = "conditional"
	SubtypeRandomizer        NodeSubtype = "randomizer"
)

// IsTrigger reports whether the subtype is an entry point.
func (s NodeSubtype) IsTrigger() bool {
	switch s {
	case SubtypeContactCreated, SubtypeTagAdded, SubtypeCRMStageChanged, SubtypeContextMessage, SubtypeWebhook:
		return true
	default:
		return false
	}
}

// IsValid checks if the subtype is known.
func (s NodeSubtype) IsValid() bool {
	if s.IsTrigger() {
		return true
	}

	switch s {
	case SubtypeSendMessage, SubtypeWait, SubtypeAddTag, SubtypeRemoveTag, SubtypeMoveCRMStage,
		SubtypeOptOut, SubtypeForwardAutomation, SubtypeHTTPRequest, SubtypeConditional, SubtypeRandomizer:
		return true
	default:
		return false
	}
}

// Position is where the node is drawn on the canvas. It plays no role in execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step of an automation graph.
type Node struct {
	ID       string      `json:"id"       validate:"required"`
	Kind     NodeKind    `json:"kind"     validate:"required,oneof=trigger action"`
	Subtype  NodeSubtype `json:"subtype"  validate:"required"`
	Position Position    `json:"position"`
	Data     NodeData    `json:"data"`
}

type rawNode struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	Subtype  NodeSubtype     `json:"subtype"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the payload into the struct matching the node subtype.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw rawNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := decodeNodeData(raw.Subtype, raw.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Kind = raw.Kind
	n.Subtype = raw.Subtype
	n.Position = raw.Position
	n.Data = data

	return nil
}

func decodeNodeData(subtype NodeSubtype, raw json.RawMessage) (NodeData, error) {
	var data NodeData

	switch subtype {
	case SubtypeContactCreated:
		data = &ContactCreatedTrigger{}
	case SubtypeTagAdded:
		data = &TagAddedTrigger{}
	case SubtypeCRMStageChanged:
		data = &CRMStageChangedTrigger{}
	case SubtypeContextMessage:
		data = &ContextMessageTrigger{}
	case SubtypeWebhook:
		data = &WebhookTrigger{}
	case SubtypeSendMessage:
		data = &SendMessageAction{}
	case SubtypeWait:
		data = &WaitAction{}
	case SubtypeAddTag, SubtypeRemoveTag:
		data = &TagAction{}
	case SubtypeMoveCRMStage:
		data = &MoveCRMStageAction{}
	case SubtypeOptOut:
		data = &OptOutAction{}
	case SubtypeForwardAutomation:
		data = &ForwardAutomationAction{}
	case SubtypeHTTPRequest:
		data = &HTTPRequestAction{}
	case SubtypeConditional:
		data = &ConditionalAction{}
	case SubtypeRandomizer:
		data = &RandomizerAction{}
	default:
		return nil, fmt.Errorf("%w: unknown node subtype %q", ErrInvalidAutomation, subtype)
	}

	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", subtype, err)
	}

	return data, nil
}
