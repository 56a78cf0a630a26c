package file

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
)

type CRMRepository struct {
	mu     *sync.Mutex
	boards *collection[models.Board]
}

func NewCRMRepository(root string, mu *sync.Mutex) *CRMRepository {
	return &CRMRepository{
		mu:     mu,
		boards: newCollection[models.Board](root, "crm_boards"),
	}
}

func (r *CRMRepository) Boards(_ context.Context) ([]*models.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	boards, err := r.boards.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	return boards, nil
}

func (r *CRMRepository) SaveBoard(_ context.Context, board *models.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stage := range board.Stages {
		stage.BoardID = board.ID
	}

	err := r.boards.put(board.ID, board)
	if err != nil {
		return fmt.Errorf("failed to save board %s: %w", board.ID, err)
	}

	return nil
}

func (r *CRMRepository) StageByID(ctx context.Context, id string) (*models.Stage, error) {
	boards, err := r.Boards(ctx)
	if err != nil {
		return nil, err
	}

	for _, board := range boards {
		for _, stage := range board.Stages {
			if stage.ID == id {
				stage.BoardID = board.ID

				return stage, nil
			}
		}
	}

	return nil, fmt.Errorf("stage %s: %w", id, persistence.ErrStageNotFound)
}
