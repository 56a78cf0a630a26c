package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/lib/pq"
)

type CRMRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCRMRepository(db *sql.DB, logger *slog.Logger) *CRMRepository {
	return &CRMRepository{db: db, logger: logger}
}

// Boards returns every board with its stages in position order.
func (r *CRMRepository) Boards(ctx context.Context) ([]*models.Board, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.name, s.id, s.name, s.tags
		FROM crm_boards b
		LEFT JOIN crm_stages s ON s.board_id = b.id
		ORDER BY b.id, s.position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	boards := make([]*models.Board, 0)

	var current *models.Board

	for rows.Next() {
		var (
			boardID, boardName string
			stageID, stageName sql.NullString
			tags               pq.StringArray
		)

		err := rows.Scan(&boardID, &boardName, &stageID, &stageName, &tags)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}

		if current == nil || current.ID != boardID {
			current = &models.Board{ID: boardID, Name: boardName, Stages: make([]*models.Stage, 0)}
			boards = append(boards, current)
		}

		if stageID.Valid {
			current.Stages = append(current.Stages, &models.Stage{
				ID:      stageID.String,
				BoardID: boardID,
				Name:    stageName.String,
				Tags:    []string(tags),
			})
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}

	return boards, nil
}

// SaveBoard replaces the board and its stages.
func (r *CRMRepository) SaveBoard(ctx context.Context, board *models.Board) error {
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
		INSERT INTO crm_boards (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, board.ID, board.Name)
	if err != nil {
		return fmt.Errorf("failed to save board %s: %w", board.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM crm_stages WHERE board_id = $1", board.ID)
	if err != nil {
		return fmt.Errorf("failed to delete stages of board %s: %w", board.ID, err)
	}

	for position, stage := range board.Stages {
		stage.BoardID = board.ID

		tags := stage.Tags
		if tags == nil {
			tags = []string{}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO crm_stages (id, board_id, name, tags, position) VALUES ($1, $2, $3, $4, $5)",
			stage.ID, board.ID, stage.Name, pq.Array(tags), position,
		)
		if err != nil {
			return fmt.Errorf("failed to save stage %s: %w", stage.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *CRMRepository) StageByID(ctx context.Context, id string) (*models.Stage, error) {
	var (
		stage models.Stage
		tags  pq.StringArray
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT id, board_id, name, tags FROM crm_stages WHERE id = $1", id,
	).Scan(&stage.ID, &stage.BoardID, &stage.Name, &tags)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stage %s: %w", id, persistence.ErrStageNotFound)
		}

		return nil, fmt.Errorf("failed to query stage %s: %w", id, err)
	}

	stage.Tags = []string(tags)

	return &stage, nil
}
