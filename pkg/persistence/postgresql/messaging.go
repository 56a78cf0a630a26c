package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
)

type TemplateRepository struct {
	db *sql.DB
}

func (r *TemplateRepository) TemplateByID(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, language, category, status FROM templates WHERE id = $1", id,
	).Scan(&template.ID, &template.Name, &template.Language, &template.Category, &template.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, persistence.ErrTemplateNotFound)
		}

		return nil, fmt.Errorf("failed to query template %s: %w", id, err)
	}

	return &template, nil
}

func (r *TemplateRepository) SaveTemplate(ctx context.Context, template *models.Template) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, language, category, status) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			status = EXCLUDED.status
	`, template.ID, template.Name, template.Language, template.Category, template.Status)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}

type ConnectionRepository struct {
	db *sql.DB
}

const connectionColumns = "id, name, phone_number_id, access_token, api_version, active, created_at"

func (r *ConnectionRepository) ActiveConnection(ctx context.Context) (*models.Connection, error) {
	connection, err := scanConnection(r.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM connections WHERE active ORDER BY created_at LIMIT 1",
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrConnectionNotFound
		}

		return nil, fmt.Errorf("failed to query active connection: %w", err)
	}

	return connection, nil
}

func (r *ConnectionRepository) ConnectionByID(ctx context.Context, id string) (*models.Connection, error) {
	connection, err := scanConnection(r.db.QueryRowContext(ctx,
		"SELECT "+connectionColumns+" FROM connections WHERE id = $1", id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("connection %s: %w", id, persistence.ErrConnectionNotFound)
		}

		return nil, fmt.Errorf("failed to query connection %s: %w", id, err)
	}

	return connection, nil
}

func (r *ConnectionRepository) SaveConnection(ctx context.Context, connection *models.Connection) error {
	if connection.ID == "" {
		connection.ID = uuid.NewString()
	}

	if connection.CreatedAt.IsZero() {
		connection.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number_id = EXCLUDED.phone_number_id,
			access_token = EXCLUDED.access_token,
			api_version = EXCLUDED.api_version,
			active = EXCLUDED.active
	`,
		connection.ID,
		connection.Name,
		connection.PhoneNumberID,
		connection.AccessToken,
		connection.APIVersion,
		connection.Active,
		connection.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save connection %s: %w", connection.ID, err)
	}

	return nil
}

func scanConnection(row scanner) (*models.Connection, error) {
	var connection models.Connection

	err := row.Scan(
		&connection.ID,
		&connection.Name,
		&connection.PhoneNumberID,
		&connection.AccessToken,
		&connection.APIVersion,
		&connection.Active,
		&connection.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &connection, nil
}

type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *MessageRepository) SaveMessage(ctx context.Context, message *models.Message) error {
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

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, contact_id, connection_id, automation_id, external_id, direction, type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		message.ID,
		message.ContactID,
		message.ConnectionID,
		message.AutomationID,
		message.ExternalID,
		message.Direction,
		message.Type,
		message.Content,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

func (r *MessageRepository) MessagesByContact(ctx context.Context, contactID string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, connection_id, automation_id, external_id, direction, type, content, created_at
		FROM messages
		WHERE contact_id = $1
		ORDER BY created_at
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	messages := make([]*models.Message, 0)

	for rows.Next() {
		var message models.Message

		err := rows.Scan(
			&message.ID,
			&message.ContactID,
			&message.ConnectionID,
			&message.AutomationID,
			&message.ExternalID,
			&message.Direction,
			&message.Type,
			&message.Content,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

type EnrollmentRepository struct {
	db *sql.DB
}

func (r *EnrollmentRepository) HasEnrollment(ctx context.Context, automationID, contactID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM enrollments WHERE automation_id = $1 AND contact_id = $2)",
		automationID, contactID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query enrollment: %w", err)
	}

	return exists, nil
}

func (r *EnrollmentRepository) RecordEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}

	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, automation_id, contact_id, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (automation_id, contact_id) DO NOTHING
	`, enrollment.ID, enrollment.AutomationID, enrollment.ContactID, enrollment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record enrollment: %w", err)
	}

	return nil
}
