package services

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/relay/pkg/models"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSortField  = errors.New("invalid sort field")
	ErrInvalidSortOrder  = errors.New("invalid sort order")
	ErrInvalidStatus     = errors.New("invalid automation status")
	ErrInvalidTaskStatus = errors.New("invalid deferred task status")
	ErrAutomationNil     = errors.New("automation cannot be nil")
	ErrSchemaViolation   = errors.New("automation does not match the automation schema")

	ErrCannotDeleteActive = errors.New("active automations must be paused before deletion")
)

// badRequestErrors are caller mistakes; the graph errors come from Automation.Validate.
var badRequestErrors = []error{
	ErrInvalidRequest,
	ErrInvalidSortField,
	ErrInvalidSortOrder,
	ErrInvalidStatus,
	ErrInvalidTaskStatus,
	ErrAutomationNil,
	ErrSchemaViolation,
	models.ErrInvalidAutomation,
	models.ErrNoTriggerNode,
	models.ErrMultipleTriggerNodes,
}

// ServiceError tags a failed operation with a machine readable code.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err should be answered with 400.
func IsValidationError(err error) bool {
	return slices.ContainsFunc(badRequestErrors, func(target error) bool {
		return errors.Is(err, target)
	})
}

// IsConflictError reports whether err should be answered with 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotDeleteActive)
}

func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
