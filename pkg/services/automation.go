// Package services holds the automation use cases served by the HTTP API.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrAutomationNotFound is returned when an automation is not found.
	ErrAutomationNotFound = persistence.ErrAutomationNotFound
)

// Automation is the catalog service behind the admin API. Every save goes through check.
type Automation struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewAutomation creates a new automation service.
func NewAutomation(persistence persistence.Persistence, validate *validator.Validate) *Automation {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &Automation{
		persistence: persistence,
		validate:    validate,
	}
}

// HealthCheck checks the health of the persistence layer.
func (a *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListAutomationsRequest contains options for listing automations.
type ListAutomationsRequest struct {
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	Status *models.AutomationStatus

	SortBy    string `validate:"oneof=created_at updated_at name"`
	SortOrder string `validate:"oneof=asc desc"`
}

// ListAutomationsResponse contains the result of listing automations.
type ListAutomationsResponse struct {
	Automations []*models.Automation `json:"automations"`
	TotalCount  int64                `json:"total_count"`
	HasNextPage bool                 `json:"has_next_page"`
}

// List retrieves automations with filtering, sorting, and pagination.
func (a *Automation) List(ctx context.Context, req ListAutomationsRequest) (*ListAutomationsResponse, error) {
	if err := a.validateListRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	automations, err := a.persistence.AutomationRepository().Automations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	if req.Status != nil {
		automations = slices.DeleteFunc(automations, func(automation *models.Automation) bool {
			return automation.Status != *req.Status
		})
	}

	sortAutomations(automations, req.SortBy, req.SortOrder == "desc")

	total := len(automations)
	start := min(req.Offset, total)
	end := min(start+req.Limit, total)

	return &ListAutomationsResponse{
		Automations: automations[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

func sortAutomations(automations []*models.Automation, by string, desc bool) {
	sort.SliceStable(automations, func(i, j int) bool {
		x, y := automations[i], automations[j]
		if desc {
			x, y = y, x
		}

		switch by {
		case "name":
			return x.Name < y.Name
		case "updated_at":
			return x.UpdatedAt.Before(y.UpdatedAt)
		default:
			return x.CreatedAt.Before(y.CreatedAt)
		}
	})
}

// validateListRequest validates and sets defaults for the request.
func (a *Automation) validateListRequest(req *ListAutomationsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil && !req.Status.IsValid() {
		return NewValidationError(
			"validateListRequest",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus,
		)
	}

	return nil
}

// FetchByID retrieves an automation by its ID.
func (a *Automation) FetchByID(ctx context.Context, id string) (*models.Automation, error) {
	return a.persistence.AutomationRepository().AutomationByID(ctx, id)
}

// Create validates and stores a new automation. Statistics start empty and new automations default to draft.
func (a *Automation) Create(ctx context.Context, automation *models.Automation) (*models.Automation, error) {
	if automation == nil {
		return nil, ErrAutomationNil
	}

	now := time.Now().UTC()
	automation.ID = uuid.Must(uuid.NewV7()).String()
	automation.CreatedAt = now
	automation.UpdatedAt = now
	automation.Stats = make(models.Stats)

	if automation.Status == "" {
		automation.Status = models.AutomationStatusDraft
	}

	if err := a.check("Create", automation); err != nil {
		return nil, err
	}

	err := a.persistence.AutomationRepository().SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	return automation, nil
}

// Update replaces the graph and settings of an automation. Creation time and statistics are kept.
func (a *Automation) Update(ctx context.Context, id string, automation *models.Automation) (*models.Automation, error) {
	if automation == nil {
		return nil, ErrAutomationNil
	}

	existing, err := a.persistence.AutomationRepository().AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	automation.ID = id
	automation.CreatedAt = existing.CreatedAt
	automation.UpdatedAt = time.Now().UTC()
	automation.Stats = existing.Stats

	if automation.Status == "" {
		automation.Status = existing.Status
	}

	if err := a.check("Update", automation); err != nil {
		return nil, err
	}

	err = a.persistence.AutomationRepository().SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to update automation: %w", err)
	}

	return automation, nil
}

// SetStatus activates, pauses or drafts an automation. Activation re-runs every check.
func (a *Automation) SetStatus(ctx context.Context, id string, status models.AutomationStatus) (*models.Automation, error) {
	if !status.IsValid() {
		return nil, NewValidationError("SetStatus", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", status), ErrInvalidStatus)
	}

	automation, err := a.persistence.AutomationRepository().AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	automation.Status = status
	automation.UpdatedAt = time.Now().UTC()

	if status == models.AutomationStatusActive {
		if err := a.check("SetStatus", automation); err != nil {
			return nil, err
		}
	}

	err = a.persistence.AutomationRepository().SaveAutomation(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to update automation status: %w", err)
	}

	return automation, nil
}

// Delete removes a paused or draft automation.
func (a *Automation) Delete(ctx context.Context, id string) error {
	automation, err := a.persistence.AutomationRepository().AutomationByID(ctx, id)
	if err != nil {
		return err
	}

	if automation.Status == models.AutomationStatusActive {
		return &ServiceError{Op: "Delete", Code: "AUTOMATION_ACTIVE", Err: ErrCannotDeleteActive}
	}

	return a.persistence.AutomationRepository().DeleteAutomation(ctx, id)
}

// Stats returns the per-node counters of an automation.
func (a *Automation) Stats(ctx context.Context, id string) (models.Stats, error) {
	automation, err := a.persistence.AutomationRepository().AutomationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return automation.Stats, nil
}

// Tasks lists deferred tasks, optionally filtered by status.
func (a *Automation) Tasks(ctx context.Context, status models.TaskStatus) ([]*models.DeferredTask, error) {
	switch status {
	case "", models.TaskStatusPending, models.TaskStatusProcessing, models.TaskStatusProcessed, models.TaskStatusFailed:
	default:
		return nil, NewValidationError("Tasks", "INVALID_TASK_STATUS", fmt.Sprintf("invalid task status '%s'", status), ErrInvalidTaskStatus)
	}

	tasks, err := a.persistence.DeferredTaskRepository().Tasks(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list deferred tasks: %w", err)
	}

	return tasks, nil
}

// check runs struct tags, the JSON schema and the graph rules, in that order.
func (a *Automation) check(op string, automation *models.Automation) error {
	if err := a.validate.Struct(automation); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(op, "INVALID_AUTOMATION", validationErrors.Error(), ErrInvalidRequest)
		}

		return fmt.Errorf("failed to validate automation: %w", err)
	}

	if err := validateSchema(automation); err != nil {
		if errors.Is(err, ErrSchemaViolation) {
			return NewValidationError(op, "SCHEMA_VIOLATION", err.Error(), err)
		}

		return err
	}

	if err := automation.Validate(); err != nil {
		return NewValidationError(op, "INVALID_GRAPH", err.Error(), err)
	}

	return nil
}
