// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrContactNotFound indicates a contact was not found by the given identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrTaskNotFound indicates a deferred task was not found.
	ErrTaskNotFound = errors.New("deferred task not found")

	// ErrStageNotFound indicates no board holds a stage with the given identifier.
	ErrStageNotFound = errors.New("crm stage not found")

	ErrTemplateNotFound = errors.New("template not found")

	// ErrConnectionNotFound indicates no messaging connection matched.
	ErrConnectionNotFound = errors.New("messaging connection not found")

	// ErrTaskNotClaimable indicates a task transition was attempted from the wrong status.
	ErrTaskNotClaimable = errors.New("deferred task is not in a claimable status")
)

// AutomationError wraps automation-related errors with additional context.
type AutomationError struct {
	Op           string // Operation being performed (e.g., "AutomationByID", "Save")
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for automation errors.
func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{
		Op:           op,
		AutomationID: automationID,
		Err:          err,
	}
}

// ContactError wraps contact-related errors with additional context.
type ContactError struct {
	Op        string
	ContactID string
	Err       error
}

func (e *ContactError) Error() string {
	return fmt.Sprintf("%s operation failed for contact %s: %v", e.Op, e.ContactID, e.Err)
}

func (e *ContactError) Unwrap() error {
	return e.Err
}

func (e *ContactError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewContactError(op, contactID string, err error) *ContactError {
	return &ContactError{Op: op, ContactID: contactID, Err: err}
}

// TaskError wraps deferred task errors with additional context.
type TaskError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s operation failed for deferred task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewTaskError(op, taskID string, err error) *TaskError {
	return &TaskError{Op: op, TaskID: taskID, Err: err}
}

// IsAutomationNotFound checks if an error indicates an automation was not found.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsContactNotFound checks if an error indicates a contact was not found.
func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

func IsStageNotFound(err error) bool {
	return errors.Is(err, ErrStageNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsConnectionNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}
