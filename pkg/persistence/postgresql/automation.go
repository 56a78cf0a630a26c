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
)

const automationColumns = `
	id
  , name
  , status
  , nodes
  , edges
  , allow_reactivation
  , block_on_open_chat
  , created_at
  , updated_at
`

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

// Automations returns every automation, oldest first.
func (r *AutomationRepository) Automations(ctx context.Context) ([]*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	for _, automation := range automations {
		err := r.loadStats(ctx, automation)
		if err != nil {
			return nil, err
		}
	}

	return automations, nil
}

func (r *AutomationRepository) AutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = $1`

	return r.queryOne(ctx, "AutomationByID", id, query, id)
}

// AutomationByWebhookID relies on JSONB containment over the nodes document.
func (r *AutomationRepository) AutomationByWebhookID(ctx context.Context, webhookID string) (*models.Automation, error) {
	filter, err := json.Marshal([]map[string]any{{
		"subtype": models.SubtypeWebhook,
		"data":    map[string]any{"webhook_id": webhookID},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook filter: %w", err)
	}

	query := `SELECT ` + automationColumns + ` FROM automations WHERE nodes @> $1::jsonb ORDER BY created_at LIMIT 1`

	return r.queryOne(ctx, "AutomationByWebhookID", webhookID, query, string(filter))
}

func (r *AutomationRepository) queryOne(ctx context.Context, op, id, query string, args ...any) (*models.Automation, error) {
	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError(op, id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError(op, id, err)
	}

	err = r.loadStats(ctx, automation)
	if err != nil {
		return nil, err
	}

	return automation, nil
}

// SaveAutomation upserts the automation and overwrites its statistics.
func (r *AutomationRepository) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	if automation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate automation ID: %w", err)
		}

		automation.ID = id.String()
	}

	if automation.Stats == nil {
		automation.Stats = make(models.Stats)
	}

	nodesJSON, err := json.Marshal(automation.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edgesJSON, err := json.Marshal(automation.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO automations (id, name, status, nodes, edges, allow_reactivation, block_on_open_chat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			allow_reactivation = EXCLUDED.allow_reactivation,
			block_on_open_chat = EXCLUDED.block_on_open_chat,
			updated_at = EXCLUDED.updated_at
	`,
		automation.ID,
		automation.Name,
		automation.Status,
		nodesJSON,
		edgesJSON,
		automation.AllowReactivation,
		automation.BlockOnOpenChat,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("SaveAutomation", automation.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM automation_node_stats WHERE automation_id = $1", automation.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing stats: %w", err)
	}

	for nodeID, stats := range automation.Stats {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO automation_node_stats (automation_id, node_id, total, success, error) VALUES ($1, $2, $3, $4, $5)",
			automation.ID, nodeID, stats.Total, stats.Success, stats.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save stats of node %s: %w", nodeID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *AutomationRepository) DeleteAutomation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return persistence.NewAutomationError("DeleteAutomation", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewAutomationError("DeleteAutomation", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

// IncrementNodeStats upserts each counter as column = column + delta inside one transaction.
func (r *AutomationRepository) IncrementNodeStats(ctx context.Context, automationID string, delta models.Stats) error {
	if len(delta) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool

	err = tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM automations WHERE id = $1)", automationID).Scan(&exists)
	if err != nil {
		return persistence.NewAutomationError("IncrementNodeStats", automationID, err)
	}

	if !exists {
		err = persistence.NewAutomationError("IncrementNodeStats", automationID, persistence.ErrAutomationNotFound)

		return err
	}

	for nodeID, stats := range delta {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO automation_node_stats (automation_id, node_id, total, success, error)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (automation_id, node_id) DO UPDATE SET
				total = automation_node_stats.total + EXCLUDED.total,
				success = automation_node_stats.success + EXCLUDED.success,
				error = automation_node_stats.error + EXCLUDED.error
		`, automationID, nodeID, stats.Total, stats.Success, stats.Error)
		if err != nil {
			return fmt.Errorf("failed to increment stats of node %s: %w", nodeID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *AutomationRepository) loadStats(ctx context.Context, automation *models.Automation) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT node_id, total, success, error FROM automation_node_stats WHERE automation_id = $1",
		automation.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automation.Stats = make(models.Stats)

	for rows.Next() {
		var (
			nodeID string
			stats  models.NodeStats
		)

		err := rows.Scan(&nodeID, &stats.Total, &stats.Success, &stats.Error)
		if err != nil {
			return fmt.Errorf("failed to scan stats: %w", err)
		}

		automation.Stats[nodeID] = stats
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating stats: %w", err)
	}

	return nil
}

func scanAutomation(row scanner) (*models.Automation, error) {
	var (
		automation models.Automation
		nodesJSON  []byte
		edgesJSON  []byte
	)

	err := row.Scan(
		&automation.ID,
		&automation.Name,
		&automation.Status,
		&nodesJSON,
		&edgesJSON,
		&automation.AllowReactivation,
		&automation.BlockOnOpenChat,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(nodesJSON, &automation.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	err = json.Unmarshal(edgesJSON, &automation.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &automation, nil
}
