// Package events defines the messages relay services exchange over the event bus.
package events

import (
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "relay.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TriggerReceivedEvent asks a worker to dispatch a domain event.
	TriggerReceivedEvent EventType = "trigger.received"
	// RunFinishedEvent reports the outcome of one automation walk.
	RunFinishedEvent EventType = "run.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type TriggerReceived struct {
	BaseEvent

	Trigger models.TriggerEvent `json:"trigger"`
}

func NewTriggerReceived(trigger models.TriggerEvent) *TriggerReceived {
	return &TriggerReceived{BaseEvent: newBase(TriggerReceivedEvent), Trigger: trigger}
}

func (TriggerReceived) GetType() EventType {
	return TriggerReceivedEvent
}

type RunFinished struct {
	BaseEvent

	RunID        string       `json:"run_id"`
	AutomationID string       `json:"automation_id"`
	ContactID    string       `json:"contact_id"`
	Status       string       `json:"status"`
	Visited      []string     `json:"visited"`
	Stats        models.Stats `json:"stats,omitempty"`
	TaskID       string       `json:"task_id,omitempty"`
}

func NewRunFinished(runID, automationID, contactID, status string) *RunFinished {
	return &RunFinished{
		BaseEvent:    newBase(RunFinishedEvent),
		RunID:        runID,
		AutomationID: automationID,
		ContactID:    contactID,
		Status:       status,
	}
}

func (RunFinished) GetType() EventType {
	return RunFinishedEvent
}
