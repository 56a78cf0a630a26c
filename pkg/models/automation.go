// Package models defines the core domain models for contact automations.
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidAutomation    = errors.New("invalid automation")
	ErrNoTriggerNode        = errors.New("automation has no trigger node")
	ErrMultipleTriggerNodes = errors.New("automation has more than one trigger node")
)

// AutomationStatus represents the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusActive AutomationStatus = "active"
	AutomationStatusPaused AutomationStatus = "paused"
	AutomationStatusDraft  AutomationStatus = "draft"
)

// IsValid checks if the automation status is known.
func (s AutomationStatus) IsValid() bool {
	switch s {
	case AutomationStatusActive, AutomationStatusPaused, AutomationStatusDraft:
		return true
	default:
		return false
	}
}

// NodeStats holds the execution counters of a single node.
type NodeStats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Error   int64 `json:"error"`
}

// Stats maps node ids to their execution counters.
type Stats map[string]NodeStats

// Add merges the counters of other into s.
func (s Stats) Add(other Stats) {
	for nodeID, delta := range other {
		current := s[nodeID]
		current.Total += delta.Total
		current.Success += delta.Success
		current.Error += delta.Error
		s[nodeID] = current
	}
}

// Automation is a directed graph of nodes fired by a single trigger node.
type Automation struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"               validate:"required,min=3"`
	Status            AutomationStatus `json:"status"             validate:"required,oneof=active paused draft"`
	Nodes             []*Node          `json:"nodes"              validate:"required,min=1,dive"`
	Edges             []*Edge          `json:"edges"              validate:"dive"`
	AllowReactivation bool             `json:"allow_reactivation"`
	BlockOnOpenChat   bool             `json:"block_on_open_chat"`
	Stats             Stats            `json:"stats"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (a *Automation) NodeByID(id string) *Node {
	for _, node := range a.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNode returns the single trigger node of the automation.
func (a *Automation) TriggerNode() (*Node, error) {
	var trigger *Node

	for _, node := range a.Nodes {
		if node.Kind != NodeKindTrigger {
			continue
		}

		if trigger != nil {
			return nil, ErrMultipleTriggerNodes
		}

		trigger = node
	}

	if trigger == nil {
		return nil, ErrNoTriggerNode
	}

	return trigger, nil
}

// Validate checks the graph rules that struct tags cannot express.
// Edges pointing to unknown nodes are accepted; they are dead routes at run time.
func (a *Automation) Validate() error {
	if _, err := a.TriggerNode(); err != nil {
		return err
	}

	nodes := make(map[string]*Node, len(a.Nodes))

	for _, node := range a.Nodes {
		if _, exists := nodes[node.ID]; exists {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidAutomation, node.ID)
		}

		if !node.Subtype.IsValid() {
			return fmt.Errorf("%w: node %q has unknown subtype %q", ErrInvalidAutomation, node.ID, node.Subtype)
		}

		if node.Subtype.IsTrigger() != (node.Kind == NodeKindTrigger) {
			return fmt.Errorf("%w: node %q kind %q does not match subtype %q", ErrInvalidAutomation, node.ID, node.Kind, node.Subtype)
		}

		nodes[node.ID] = node
	}

	for _, edge := range a.Edges {
		source, ok := nodes[edge.Source]
		if !ok {
			continue
		}

		if err := checkHandle(source, edge); err != nil {
			return err
		}
	}

	return nil
}

func checkHandle(source *Node, edge *Edge) error {
	handle := edge.Handle()

	switch source.Subtype {
	case SubtypeConditional:
		if handle != HandleTrue && handle != HandleFalse {
			return fmt.Errorf("%w: edge %q from conditional node %q must use a true/false handle", ErrInvalidAutomation, edge.ID, source.ID)
		}
	case SubtypeRandomizer:
		if _, ok := ParseBranchHandle(handle); !ok {
			return fmt.Errorf("%w: edge %q from randomizer node %q must use a branch-N handle", ErrInvalidAutomation, edge.ID, source.ID)
		}
	default:
		if handle != "" {
			return fmt.Errorf("%w: edge %q from node %q must not carry a handle", ErrInvalidAutomation, edge.ID, source.ID)
		}
	}

	return nil
}

// Clone returns a copy of the automation that shares no mutable state with the original.
// Node payloads are treated as immutable and are shared.
func (a *Automation) Clone() *Automation {
	clone := *a

	clone.Nodes = make([]*Node, len(a.Nodes))
	for i, node := range a.Nodes {
		n := *node
		clone.Nodes[i] = &n
	}

	clone.Edges = make([]*Edge, len(a.Edges))
	for i, edge := range a.Edges {
		e := *edge
		if edge.SourceHandle != nil {
			handle := *edge.SourceHandle
			e.SourceHandle = &handle
		}

		clone.Edges[i] = &e
	}

	clone.Stats = make(Stats, len(a.Stats))
	for nodeID, stats := range a.Stats {
		clone.Stats[nodeID] = stats
	}

	return &clone
}
