package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/relay/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		automationErr := persistence.NewAutomationError("AutomationByID", "automation-123", persistence.ErrAutomationNotFound)
		contactErr := persistence.NewContactError("UpdateContact", "contact-7", persistence.ErrContactNotFound)
		taskErr := persistence.NewTaskError("MarkProcessed", "task-1", persistence.ErrTaskNotFound)

		assert.True(t, persistence.IsAutomationNotFound(automationErr))
		assert.True(t, persistence.IsContactNotFound(contactErr))
		assert.True(t, persistence.IsTaskNotFound(taskErr))
		assert.False(t, persistence.IsContactNotFound(automationErr))

		wrapped := fmt.Errorf("failed to resume: %w", taskErr)
		assert.True(t, errors.Is(wrapped, persistence.ErrTaskNotFound))
	})

	t.Run("errors carry context", func(t *testing.T) {
		err := persistence.NewAutomationError("SaveAutomation", "automation-123", errors.New("disk full"))

		assert.Contains(t, err.Error(), "SaveAutomation")
		assert.Contains(t, err.Error(), "automation-123")
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("lookup helpers", func(t *testing.T) {
		assert.True(t, persistence.IsStageNotFound(fmt.Errorf("x: %w", persistence.ErrStageNotFound)))
		assert.True(t, persistence.IsTemplateNotFound(persistence.ErrTemplateNotFound))
		assert.True(t, persistence.IsConnectionNotFound(persistence.ErrConnectionNotFound))
	})
}
