package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
)

type TemplateRepository struct {
	mu        *sync.Mutex
	templates *collection[models.Template]
}

func NewTemplateRepository(root string, mu *sync.Mutex) *TemplateRepository {
	return &TemplateRepository{mu: mu, templates: newCollection[models.Template](root, "templates")}
}

func (r *TemplateRepository) TemplateByID(_ context.Context, id string) (*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	template, err := r.templates.get(id)
	if err != nil {
		return nil, err
	}

	if template == nil {
		return nil, fmt.Errorf("template %s: %w", id, persistence.ErrTemplateNotFound)
	}

	return template, nil
}

func (r *TemplateRepository) SaveTemplate(_ context.Context, template *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.templates.put(template.ID, template)
}

type ConnectionRepository struct {
	mu          *sync.Mutex
	connections *collection[models.Connection]
}

func NewConnectionRepository(root string, mu *sync.Mutex) *ConnectionRepository {
	return &ConnectionRepository{mu: mu, connections: newCollection[models.Connection](root, "connections")}
}

// ActiveConnection returns the oldest active connection.
func (r *ConnectionRepository) ActiveConnection(_ context.Context) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections, err := r.connections.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	var active *models.Connection

	for _, connection := range connections {
		if !connection.Active {
			continue
		}

		if active == nil || connection.CreatedAt.Before(active.CreatedAt) {
			active = connection
		}
	}

	if active == nil {
		return nil, persistence.ErrConnectionNotFound
	}

	return active, nil
}

func (r *ConnectionRepository) ConnectionByID(_ context.Context, id string) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connection, err := r.connections.get(id)
	if err != nil {
		return nil, err
	}

	if connection == nil {
		return nil, fmt.Errorf("connection %s: %w", id, persistence.ErrConnectionNotFound)
	}

	return connection, nil
}

func (r *ConnectionRepository) SaveConnection(_ context.Context, connection *models.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connection.ID == "" {
		connection.ID = uuid.NewString()
	}

	if connection.CreatedAt.IsZero() {
		connection.CreatedAt = time.Now().UTC()
	}

	return r.connections.put(connection.ID, connection)
}

type MessageRepository struct {
	mu       *sync.Mutex
	messages *collection[models.Message]
}

func NewMessageRepository(root string, mu *sync.Mutex) *MessageRepository {
	return &MessageRepository{mu: mu, messages: newCollection[models.Message](root, "messages")}
}

func (r *MessageRepository) SaveMessage(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	return r.messages.put(message.ID, message)
}

// MessagesByContact returns the conversation log of a contact, oldest first.
func (r *MessageRepository) MessagesByContact(_ context.Context, contactID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.messages.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*models.Message, 0)

	for _, message := range all {
		if message.ContactID == contactID {
			messages = append(messages, message)
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

type EnrollmentRepository struct {
	mu          *sync.Mutex
	enrollments *collection[models.Enrollment]
}

func NewEnrollmentRepository(root string, mu *sync.Mutex) *EnrollmentRepository {
	return &EnrollmentRepository{mu: mu, enrollments: newCollection[models.Enrollment](root, "enrollments")}
}

func enrollmentKey(automationID, contactID string) string {
	return automationID + "__" + contactID
}

func (r *EnrollmentRepository) HasEnrollment(_ context.Context, automationID, contactID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enrollment, err := r.enrollments.get(enrollmentKey(automationID, contactID))
	if err != nil {
		return false, err
	}

	return enrollment != nil, nil
}

// RecordEnrollment keeps the first enrollment of a contact; later ones are ignored.
func (r *EnrollmentRepository) RecordEnrollment(_ context.Context, enrollment *models.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := enrollmentKey(enrollment.AutomationID, enrollment.ContactID)

	existing, err := r.enrollments.get(key)
	if err != nil {
		return err
	}

	if existing != nil {
		return nil
	}

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}

	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	return r.enrollments.put(key, enrollment)
}
