package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const contactColumns = `
	id
  , name
  , phone
  , tags
  , crm_board_id
  , crm_stage_id
  , window_open
  , opted_out
  , fields
  , created_at
  , updated_at
`

// ContactRepository handles contact-related database operations.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

func (r *ContactRepository) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)

	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewContactError("ContactByID", id, persistence.ErrContactNotFound)
		}

		return nil, persistence.NewContactError("ContactByID", id, err)
	}

	return contact, nil
}

func (r *ContactRepository) SaveContact(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate contact ID: %w", err)
		}

		contact.ID = id.String()
	}

	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	err := r.write(ctx, r.db, contact)
	if err != nil {
		return persistence.NewContactError("SaveContact", contact.ID, err)
	}

	return nil
}

// UpdateContact locks the row, applies patch and writes the result back in one transaction.
func (r *ContactRepository) UpdateContact(ctx context.Context, id string, patch models.ContactPatch) (*models.Contact, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	contact, err := scanContact(tx.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewContactError("UpdateContact", id, persistence.ErrContactNotFound)
		}

		return nil, persistence.NewContactError("UpdateContact", id, err)
	}

	patch.Apply(contact)
	contact.UpdatedAt = time.Now().UTC()

	err = r.write(ctx, tx, contact)
	if err != nil {
		return nil, persistence.NewContactError("UpdateContact", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return contact, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ContactRepository) write(ctx context.Context, db execer, contact *models.Contact) error {
	fields := contact.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	tags := contact.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, phone, tags, crm_board_id, crm_stage_id, window_open, opted_out, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			tags = EXCLUDED.tags,
			crm_board_id = EXCLUDED.crm_board_id,
			crm_stage_id = EXCLUDED.crm_stage_id,
			window_open = EXCLUDED.window_open,
			opted_out = EXCLUDED.opted_out,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`,
		contact.ID,
		contact.Name,
		contact.Phone,
		pq.Array(tags),
		contact.CRMBoardID,
		contact.CRMStageID,
		contact.WindowOpen,
		contact.OptedOut,
		fieldsJSON,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

func scanContact(row scanner) (*models.Contact, error) {
	var (
		contact    models.Contact
		tags       pq.StringArray
		fieldsJSON []byte
	)

	err := row.Scan(
		&contact.ID,
		&contact.Name,
		&contact.Phone,
		&tags,
		&contact.CRMBoardID,
		&contact.CRMStageID,
		&contact.WindowOpen,
		&contact.OptedOut,
		&fieldsJSON,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	contact.Tags = []string(tags)

	err = json.Unmarshal(fieldsJSON, &contact.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}

	return &contact, nil
}
