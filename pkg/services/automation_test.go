package services

import (
	"testing"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(label string) *string {
	return &label
}

func welcomeAutomation() *models.Automation {
	return &models.Automation{
		Name: "Welcome VIP",
		Nodes: []*models.Node{
			{ID: "t", Kind: models.NodeKindTrigger, Subtype: models.SubtypeTagAdded, Data: &models.TagAddedTrigger{Tag: "vip"}},
			{ID: "check", Kind: models.NodeKindAction, Subtype: models.SubtypeConditional, Data: &models.ConditionalAction{Logic: models.LogicAnd}},
			{ID: "send", Kind: models.NodeKindAction, Subtype: models.SubtypeSendMessage, Data: &models.SendMessageAction{MessageType: models.MessageTypeText, Text: "Hi"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "t", Target: "check"},
			{ID: "e2", Source: "check", Target: "send", SourceHandle: handle(models.HandleTrue)},
		},
	}
}

func newService(t *testing.T) (*Automation, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewAutomation(store, nil), store
}

func TestAutomation_Create(t *testing.T) {
	service, store := newService(t)

	created, err := service.Create(t.Context(), welcomeAutomation())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, models.AutomationStatusDraft, created.Status)
	assert.Empty(t, created.Stats)

	stored, err := store.AutomationRepository().AutomationByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome VIP", stored.Name)
	assert.Len(t, stored.Nodes, 3)
}

func TestAutomation_CreateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *models.Automation)
		wantErr error
	}{
		{
			name:    "short name",
			mutate:  func(a *models.Automation) { a.Name = "ab" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown status",
			mutate:  func(a *models.Automation) { a.Status = "archived" },
			wantErr: ErrInvalidRequest,
		},
		{
			name: "unknown subtype",
			mutate: func(a *models.Automation) {
				a.Nodes[2].Subtype = "send_email"
			},
			wantErr: ErrSchemaViolation,
		},
		{
			name: "malformed handle",
			mutate: func(a *models.Automation) {
				a.Edges[1].SourceHandle = handle("maybe")
			},
			wantErr: ErrSchemaViolation,
		},
		{
			name: "no trigger",
			mutate: func(a *models.Automation) {
				a.Nodes = a.Nodes[1:]
			},
			wantErr: models.ErrNoTriggerNode,
		},
		{
			name: "two triggers",
			mutate: func(a *models.Automation) {
				a.Nodes = append(a.Nodes, &models.Node{ID: "t2", Kind: models.NodeKindTrigger, Subtype: models.SubtypeContactCreated, Data: &models.ContactCreatedTrigger{}})
			},
			wantErr: models.ErrMultipleTriggerNodes,
		},
		{
			name: "duplicate node id",
			mutate: func(a *models.Automation) {
				a.Nodes[2].ID = "check"
			},
			wantErr: models.ErrInvalidAutomation,
		},
		{
			name: "handle on linear edge",
			mutate: func(a *models.Automation) {
				a.Edges[0].SourceHandle = handle(models.HandleTrue)
			},
			wantErr: models.ErrInvalidAutomation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newService(t)

			automation := welcomeAutomation()
			tt.mutate(automation)

			_, err := service.Create(t.Context(), automation)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))

			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Equal(t, "Create", serviceErr.Op)
		})
	}

	service, _ := newService(t)
	_, err := service.Create(t.Context(), nil)
	assert.ErrorIs(t, err, ErrAutomationNil)
}

func TestAutomation_OrphanEdgesAreAccepted(t *testing.T) {
	service, _ := newService(t)

	automation := welcomeAutomation()
	automation.Edges = append(automation.Edges, &models.Edge{ID: "dangling", Source: "send", Target: "nowhere"})

	_, err := service.Create(t.Context(), automation)
	assert.NoError(t, err)
}

func TestAutomation_UpdateKeepsStats(t *testing.T) {
	service, store := newService(t)

	created, err := service.Create(t.Context(), welcomeAutomation())
	require.NoError(t, err)

	require.NoError(t, store.AutomationRepository().IncrementNodeStats(t.Context(), created.ID, models.Stats{
		"send": {Total: 2, Success: 2},
	}))

	changed := welcomeAutomation()
	changed.Name = "Welcome VIP v2"
	changed.Stats = models.Stats{"send": {Total: 99}}

	updated, err := service.Update(t.Context(), created.ID, changed)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Welcome VIP v2", updated.Name)
	assert.Equal(t, models.AutomationStatusDraft, updated.Status)
	assert.Equal(t, models.NodeStats{Total: 2, Success: 2}, updated.Stats["send"])
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	_, err = service.Update(t.Context(), "missing", welcomeAutomation())
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomation_SetStatusAndDelete(t *testing.T) {
	service, _ := newService(t)

	created, err := service.Create(t.Context(), welcomeAutomation())
	require.NoError(t, err)

	active, err := service.SetStatus(t.Context(), created.ID, models.AutomationStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationStatusActive, active.Status)

	err = service.Delete(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrCannotDeleteActive)
	assert.True(t, IsConflictError(err))

	_, err = service.SetStatus(t.Context(), created.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = service.SetStatus(t.Context(), created.ID, models.AutomationStatusPaused)
	require.NoError(t, err)
	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.ErrorIs(t, err, ErrAutomationNotFound)
}

func TestAutomation_List(t *testing.T) {
	service, _ := newService(t)

	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		automation := welcomeAutomation()
		automation.Name = name

		_, err := service.Create(t.Context(), automation)
		require.NoError(t, err)
	}

	_, err := service.SetStatus(t.Context(), mustFirst(t, service, "Bravo").ID, models.AutomationStatusActive)
	require.NoError(t, err)

	byName, err := service.List(t.Context(), ListAutomationsRequest{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), byName.TotalCount)
	assert.True(t, byName.HasNextPage)
	require.Len(t, byName.Automations, 2)
	assert.Equal(t, "Alpha", byName.Automations[0].Name)
	assert.Equal(t, "Bravo", byName.Automations[1].Name)

	status := models.AutomationStatusActive
	active, err := service.List(t.Context(), ListAutomationsRequest{Status: &status})
	require.NoError(t, err)
	require.Len(t, active.Automations, 1)
	assert.Equal(t, "Bravo", active.Automations[0].Name)

	_, err = service.List(t.Context(), ListAutomationsRequest{SortBy: "stats"})
	assert.ErrorIs(t, err, ErrInvalidSortField)

	_, err = service.List(t.Context(), ListAutomationsRequest{SortOrder: "up"})
	assert.ErrorIs(t, err, ErrInvalidSortOrder)
}

func mustFirst(t *testing.T, service *Automation, name string) *models.Automation {
	t.Helper()

	all, err := service.List(t.Context(), ListAutomationsRequest{Limit: 100})
	require.NoError(t, err)

	for _, automation := range all.Automations {
		if automation.Name == name {
			return automation
		}
	}

	t.Fatalf("automation %q not found", name)

	return nil
}

func TestAutomation_Tasks(t *testing.T) {
	service, store := newService(t)

	require.NoError(t, store.DeferredTaskRepository().CreateTask(t.Context(), &models.DeferredTask{
		AutomationID: "a", ContactID: "7", ResumeNodeID: "send",
	}))

	pending, err := service.Tasks(t.Context(), models.TaskStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	failed, err := service.Tasks(t.Context(), models.TaskStatusFailed)
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = service.Tasks(t.Context(), "done")
	assert.ErrorIs(t, err, ErrInvalidTaskStatus)
}

func TestAutomation_HealthCheck(t *testing.T) {
	service, _ := newService(t)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	message, ok = NewAutomation(nil, nil).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", message)
}
