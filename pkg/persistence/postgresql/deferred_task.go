package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/google/uuid"
)

const taskColumns = `
	id
  , automation_id
  , contact_id
  , resume_node_id
  , fire_at
  , context
  , connection_id
  , status
  , error
  , created_at
  , updated_at
`

// DeferredTaskRepository stores suspended runs. Claims use FOR UPDATE SKIP LOCKED so
// concurrent pollers never receive the same task.
type DeferredTaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDeferredTaskRepository(db *sql.DB, logger *slog.Logger) *DeferredTaskRepository {
	return &DeferredTaskRepository{db: db, logger: logger}
}

func (r *DeferredTaskRepository) CreateTask(ctx context.Context, task *models.DeferredTask) error {
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	taskContext := task.Context
	if taskContext == nil {
		taskContext = map[string]any{}
	}

	contextJSON, err := json.Marshal(taskContext)
	if err != nil {
		return fmt.Errorf("failed to marshal task context: %w", err)
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO deferred_tasks (id, automation_id, contact_id, resume_node_id, fire_at, context, connection_id, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10)
	`,
		task.ID,
		task.AutomationID,
		task.ContactID,
		task.ResumeNodeID,
		task.FireAt.UTC(),
		contextJSON,
		task.ConnectionID,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return persistence.NewTaskError("CreateTask", task.ID, err)
	}

	return nil
}

func (r *DeferredTaskRepository) TaskByID(ctx context.Context, id string) (*models.DeferredTask, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM deferred_tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTaskError("TaskByID", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError("TaskByID", id, err)
	}

	return task, nil
}

func (r *DeferredTaskRepository) Tasks(ctx context.Context, status models.TaskStatus) ([]*models.DeferredTask, error) {
	query := `SELECT ` + taskColumns + ` FROM deferred_tasks WHERE ($1::text = '' OR status = $1::text) ORDER BY fire_at`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query deferred tasks: %w", err)
	}

	return r.collect(ctx, rows)
}

func (r *DeferredTaskRepository) ClaimDueTasks(ctx context.Context, now time.Time, limit int) ([]*models.DeferredTask, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		UPDATE deferred_tasks
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM deferred_tasks
			WHERE status = 'pending' AND fire_at <= $1
			ORDER BY fire_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	rows, err := r.db.QueryContext(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim deferred tasks: %w", err)
	}

	tasks, err := r.collect(ctx, rows)
	if err != nil {
		return nil, err
	}

	sortByFireAt(tasks)

	return tasks, nil
}

func (r *DeferredTaskRepository) MarkProcessed(ctx context.Context, id string) error {
	return r.finish(ctx, "MarkProcessed", id, models.TaskStatusProcessed, "")
}

func (r *DeferredTaskRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.finish(ctx, "MarkFailed", id, models.TaskStatusFailed, message)
}

func (r *DeferredTaskRepository) finish(ctx context.Context, op, id string, status models.TaskStatus, message string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deferred_tasks
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, status, message)
	if err != nil {
		return persistence.NewTaskError(op, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	_, err = r.TaskByID(ctx, id)
	if err != nil {
		return err
	}

	return persistence.NewTaskError(op, id, persistence.ErrTaskNotClaimable)
}

func (r *DeferredTaskRepository) collect(ctx context.Context, rows *sql.Rows) ([]*models.DeferredTask, error) {
	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.DeferredTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deferred task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating deferred tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(row scanner) (*models.DeferredTask, error) {
	var (
		task        models.DeferredTask
		contextJSON []byte
	)

	err := row.Scan(
		&task.ID,
		&task.AutomationID,
		&task.ContactID,
		&task.ResumeNodeID,
		&task.FireAt,
		&contextJSON,
		&task.ConnectionID,
		&task.Status,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(contextJSON, &task.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal task context: %w", err)
	}

	return &task, nil
}

func sortByFireAt(tasks []*models.DeferredTask) {
	slices.SortStableFunc(tasks, func(a, b *models.DeferredTask) int {
		return a.FireAt.Compare(b.FireAt)
	})
}
