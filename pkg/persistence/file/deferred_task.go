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

// DeferredTaskRepository stores deferred tasks as files. Claims run under the
// persistence lock, so two pollers in the same process never claim the same task.
type DeferredTaskRepository struct {
	mu    *sync.Mutex
	tasks *collection[models.DeferredTask]
}

func NewDeferredTaskRepository(root string, mu *sync.Mutex) *DeferredTaskRepository {
	return &DeferredTaskRepository{
		mu:    mu,
		tasks: newCollection[models.DeferredTask](root, "deferred_tasks"),
	}
}

func (r *DeferredTaskRepository) CreateTask(_ context.Context, task *models.DeferredTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now

	err := r.tasks.put(task.ID, task)
	if err != nil {
		return persistence.NewTaskError("CreateTask", task.ID, err)
	}

	return nil
}

func (r *DeferredTaskRepository) TaskByID(_ context.Context, id string) (*models.DeferredTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load("TaskByID", id)
}

func (r *DeferredTaskRepository) load(op, id string) (*models.DeferredTask, error) {
	task, err := r.tasks.get(id)
	if err != nil {
		return nil, persistence.NewTaskError(op, id, err)
	}

	if task == nil {
		return nil, persistence.NewTaskError(op, id, persistence.ErrTaskNotFound)
	}

	return task, nil
}

// Tasks lists tasks ordered by fire time.
func (r *DeferredTaskRepository) Tasks(_ context.Context, status models.TaskStatus) ([]*models.DeferredTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.tasks.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred tasks: %w", err)
	}

	tasks := make([]*models.DeferredTask, 0, len(all))

	for _, task := range all {
		if status == "" || task.Status == status {
			tasks = append(tasks, task)
		}
	}

	sortByFireAt(tasks)

	return tasks, nil
}

func (r *DeferredTaskRepository) ClaimDueTasks(_ context.Context, now time.Time, limit int) ([]*models.DeferredTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.tasks.all()
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred tasks: %w", err)
	}

	due := make([]*models.DeferredTask, 0)

	for _, task := range all {
		if task.IsDue(now) {
			due = append(due, task)
		}
	}

	sortByFireAt(due)

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimedAt := time.Now().UTC()

	for _, task := range due {
		task.Status = models.TaskStatusProcessing
		task.UpdatedAt = claimedAt

		err := r.tasks.put(task.ID, task)
		if err != nil {
			return nil, persistence.NewTaskError("ClaimDueTasks", task.ID, err)
		}
	}

	return due, nil
}

func (r *DeferredTaskRepository) MarkProcessed(_ context.Context, id string) error {
	return r.finish("MarkProcessed", id, models.TaskStatusProcessed, "")
}

func (r *DeferredTaskRepository) MarkFailed(_ context.Context, id string, message string) error {
	return r.finish("MarkFailed", id, models.TaskStatusFailed, message)
}

func (r *DeferredTaskRepository) finish(op, id string, status models.TaskStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.load(op, id)
	if err != nil {
		return err
	}

	if task.Status.IsTerminal() {
		return persistence.NewTaskError(op, id, persistence.ErrTaskNotClaimable)
	}

	task.Status = status
	task.Error = message
	task.UpdatedAt = time.Now().UTC()

	err = r.tasks.put(task.ID, task)
	if err != nil {
		return persistence.NewTaskError(op, id, err)
	}

	return nil
}

func sortByFireAt(tasks []*models.DeferredTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].FireAt.Before(tasks[j].FireAt)
	})
}
