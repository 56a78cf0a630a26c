// Package persistence provides the storage abstraction used by the automation engine.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/relay/pkg/models"
)

// Persistence groups every repository of a storage backend.
type Persistence interface {
	AutomationRepository() AutomationRepository
	ContactRepository() ContactRepository
	DeferredTaskRepository() DeferredTaskRepository
	CRMRepository() CRMRepository
	TemplateRepository() TemplateRepository
	ConnectionRepository() ConnectionRepository
	MessageRepository() MessageRepository
	EnrollmentRepository() EnrollmentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository is the automation catalog.
type AutomationRepository interface {
	Automations(ctx context.Context) ([]*models.Automation, error)
	// AutomationByID returns ErrAutomationNotFound when the id is unknown.
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	// AutomationByWebhookID finds the automation whose webhook trigger node owns webhookID.
	AutomationByWebhookID(ctx context.Context, webhookID string) (*models.Automation, error)
	// SaveAutomation overwrites the stored automation, statistics included.
	SaveAutomation(ctx context.Context, automation *models.Automation) error
	DeleteAutomation(ctx context.Context, id string) error
	// IncrementNodeStats adds delta to the stored counters without touching other nodes.
	IncrementNodeStats(ctx context.Context, automationID string, delta models.Stats) error
}

// ContactRepository is the contact store. Reads must reflect every previous write.
type ContactRepository interface {
	// ContactByID returns ErrContactNotFound when the id is unknown.
	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	SaveContact(ctx context.Context, contact *models.Contact) error
	UpdateContact(ctx context.Context, id string, patch models.ContactPatch) (*models.Contact, error)
}

// DeferredTaskRepository stores suspended runs until they are due.
type DeferredTaskRepository interface {
	CreateTask(ctx context.Context, task *models.DeferredTask) error
	TaskByID(ctx context.Context, id string) (*models.DeferredTask, error)
	// Tasks lists tasks with the given status, or every task when status is empty.
	Tasks(ctx context.Context, status models.TaskStatus) ([]*models.DeferredTask, error)
	// ClaimDueTasks moves up to limit pending tasks due at now to processing and returns them.
	// A task is returned by at most one concurrent caller.
	ClaimDueTasks(ctx context.Context, now time.Time, limit int) ([]*models.DeferredTask, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, message string) error
}

// CRMRepository resolves pipeline boards and their stages.
type CRMRepository interface {
	Boards(ctx context.Context) ([]*models.Board, error)
	SaveBoard(ctx context.Context, board *models.Board) error
	// StageByID searches every board and returns ErrStageNotFound when nothing matches.
	StageByID(ctx context.Context, id string) (*models.Stage, error)
}

type TemplateRepository interface {
	TemplateByID(ctx context.Context, id string) (*models.Template, error)
	SaveTemplate(ctx context.Context, template *models.Template) error
}

type ConnectionRepository interface {
	// ActiveConnection returns ErrConnectionNotFound when no connection is active.
	ActiveConnection(ctx context.Context) (*models.Connection, error)
	ConnectionByID(ctx context.Context, id string) (*models.Connection, error)
	SaveConnection(ctx context.Context, connection *models.Connection) error
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, message *models.Message) error
	MessagesByContact(ctx context.Context, contactID string) ([]*models.Message, error)
}

type EnrollmentRepository interface {
	HasEnrollment(ctx context.Context, automationID, contactID string) (bool, error)
	RecordEnrollment(ctx context.Context, enrollment *models.Enrollment) error
}
