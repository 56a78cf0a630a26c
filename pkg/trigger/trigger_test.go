package trigger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/persistence/file"
	"github.com/dukex/relay/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, automation *models.Automation, contactID string, vars map[string]any) (*engine.Result, error) {
	args := m.Called(ctx, automation, contactID, vars)

	result, _ := args.Get(0).(*engine.Result)

	return result, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, contact *models.Contact) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	if contact == nil {
		contact = &models.Contact{ID: "7", Name: "Ana", Phone: "+5511999990000"}
	}

	require.NoError(t, store.ContactRepository().SaveContact(t.Context(), contact))
	require.NoError(t, store.ConnectionRepository().SaveConnection(t.Context(), &models.Connection{
		ID: "main", PhoneNumberID: "123", AccessToken: "token", Active: true,
	}))

	return store
}

func tagAutomation(id, tag string) *models.Automation {
	return &models.Automation{
		ID:     id,
		Name:   id,
		Status: models.AutomationStatusActive,
		Nodes: []*models.Node{
			{ID: "trigger", Kind: models.NodeKindTrigger, Subtype: models.SubtypeTagAdded, Data: &models.TagAddedTrigger{Tag: tag}},
		},
	}
}

func saveAll(t *testing.T, store persistence.Persistence, automations ...*models.Automation) {
	t.Helper()

	for _, automation := range automations {
		require.NoError(t, store.AutomationRepository().SaveAutomation(t.Context(), automation))
	}
}

func matchedIDs(matches []trigger.Match) []string {
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.Automation.ID)
	}

	return ids
}

func TestMatcher_Gates(t *testing.T) {
	vipEvent := models.TriggerEvent{Type: models.SubtypeTagAdded, ContactID: "7", TagName: "vip"}

	tests := []struct {
		name     string
		contact  *models.Contact
		setup    func(t *testing.T, store *file.Persistence)
		event    models.TriggerEvent
		expected []string
	}{
		{
			name:     "matching automations",
			event:    vipEvent,
			expected: []string{"a", "wildcard"},
		},
		{
			name:     "opted out contact",
			contact:  &models.Contact{ID: "7", Phone: "+1", OptedOut: true},
			event:    vipEvent,
			expected: []string{},
		},
		{
			name: "no active connection",
			setup: func(t *testing.T, store *file.Persistence) {
				require.NoError(t, store.ConnectionRepository().SaveConnection(t.Context(), &models.Connection{
					ID: "main", PhoneNumberID: "123", AccessToken: "token", Active: false,
				}))
			},
			event:    vipEvent,
			expected: []string{},
		},
		{
			name: "paused automation",
			setup: func(t *testing.T, store *file.Persistence) {
				a, err := store.AutomationRepository().AutomationByID(t.Context(), "a")
				require.NoError(t, err)

				a.Status = models.AutomationStatusPaused
				saveAll(t, store, a)
			},
			event:    vipEvent,
			expected: []string{"wildcard"},
		},
		{
			name: "narrowed to one automation",
			event: models.TriggerEvent{
				Type: models.SubtypeTagAdded, ContactID: "7", TagName: "vip", AutomationID: "wildcard",
			},
			expected: []string{"wildcard"},
		},
		{
			name: "narrowed to an unknown automation",
			event: models.TriggerEvent{
				Type: models.SubtypeTagAdded, ContactID: "7", TagName: "vip", AutomationID: "nope",
			},
			expected: []string{},
		},
		{
			name:    "open chat blocks",
			contact: &models.Contact{ID: "7", Phone: "+1", WindowOpen: true},
			setup: func(t *testing.T, store *file.Persistence) {
				a, err := store.AutomationRepository().AutomationByID(t.Context(), "a")
				require.NoError(t, err)

				a.BlockOnOpenChat = true
				saveAll(t, store, a)
			},
			event:    vipEvent,
			expected: []string{"wildcard"},
		},
		{
			name: "enrolled contact without reactivation",
			setup: func(t *testing.T, store *file.Persistence) {
				require.NoError(t, store.EnrollmentRepository().RecordEnrollment(t.Context(), &models.Enrollment{
					AutomationID: "a", ContactID: "7",
				}))
				require.NoError(t, store.EnrollmentRepository().RecordEnrollment(t.Context(), &models.Enrollment{
					AutomationID: "wildcard", ContactID: "7",
				}))

				w, err := store.AutomationRepository().AutomationByID(t.Context(), "wildcard")
				require.NoError(t, err)

				w.AllowReactivation = true
				saveAll(t, store, w)
			},
			event:    vipEvent,
			expected: []string{"wildcard"},
		},
		{
			name:     "other trigger type",
			event:    models.TriggerEvent{Type: models.SubtypeContactCreated, ContactID: "7"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, tt.contact)
			saveAll(t, store, tagAutomation("a", "vip"), tagAutomation("b", "gold"), tagAutomation("wildcard", ""))

			if tt.setup != nil {
				tt.setup(t, store)
			}

			matches, err := trigger.NewMatcher(store, discardLogger()).Match(t.Context(), tt.event)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, matchedIDs(matches))
		})
	}
}

func TestMatcher_UnknownContact(t *testing.T) {
	store := newStore(t, nil)

	_, err := trigger.NewMatcher(store, discardLogger()).Match(t.Context(), models.TriggerEvent{
		Type: models.SubtypeContactCreated, ContactID: "ghost",
	})
	require.Error(t, err)
	assert.True(t, persistence.IsContactNotFound(err))
}

func TestDispatcher_Dispatch(t *testing.T) {
	store := newStore(t, nil)
	saveAll(t, store, tagAutomation("a", "vip"), tagAutomation("b", "vip"), tagAutomation("c", "gold"))

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.MatchedBy(func(a *models.Automation) bool { return a.ID == "a" }), "7", mock.Anything).
		Return(&engine.Result{AutomationID: "a", Status: engine.StatusCompleted}, nil).Once()
	runner.On("Run", mock.Anything, mock.MatchedBy(func(a *models.Automation) bool { return a.ID == "b" }), "7", mock.Anything).
		Return(nil, errors.New("boom")).Once()

	dispatcher := trigger.NewDispatcher(store, runner, discardLogger())
	event := models.TriggerEvent{Type: models.SubtypeTagAdded, ContactID: "7", TagName: "vip"}

	summary, err := dispatcher.Dispatch(t.Context(), event)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "a", summary.Results[0].AutomationID)
	runner.AssertExpectations(t)

	runner.AssertCalled(t, "Run", mock.Anything, mock.Anything, "7", map[string]any{
		"event": map[string]any{"type": "tag_added", "contact_id": "7", "tag_name": "vip"},
	})

	for _, id := range []string{"a", "b"} {
		enrolled, err := store.EnrollmentRepository().HasEnrollment(t.Context(), id, "7")
		require.NoError(t, err)
		assert.True(t, enrolled, id)
	}

	summary, err = dispatcher.Dispatch(t.Context(), event)
	require.NoError(t, err)
	assert.Equal(t, trigger.Summary{}, summary)
}

func TestDispatcher_DispatchWebhook(t *testing.T) {
	store := newStore(t, nil)

	hooked := &models.Automation{
		ID:     "hooked",
		Name:   "hooked",
		Status: models.AutomationStatusActive,
		Nodes: []*models.Node{
			{ID: "trigger", Kind: models.NodeKindTrigger, Subtype: models.SubtypeWebhook, Data: &models.WebhookTrigger{WebhookID: "wh-1"}},
		},
	}
	other := &models.Automation{
		ID:     "other",
		Name:   "other",
		Status: models.AutomationStatusActive,
		Nodes: []*models.Node{
			{ID: "trigger", Kind: models.NodeKindTrigger, Subtype: models.SubtypeWebhook, Data: &models.WebhookTrigger{WebhookID: "wh-2"}},
		},
	}
	saveAll(t, store, hooked, other)

	payload := map[string]any{"contact_id": "7", "order": "A-1"}

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.MatchedBy(func(a *models.Automation) bool { return a.ID == "hooked" }), "7",
		mock.MatchedBy(func(vars map[string]any) bool {
			webhook, ok := vars["webhook"].(map[string]any)

			return ok && webhook["order"] == "A-1"
		})).
		Return(&engine.Result{AutomationID: "hooked", Status: engine.StatusCompleted}, nil).Once()

	dispatcher := trigger.NewDispatcher(store, runner, discardLogger())

	summary, err := dispatcher.DispatchWebhook(t.Context(), "wh-1", payload)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Processed)
	runner.AssertExpectations(t)

	_, err = dispatcher.DispatchWebhook(t.Context(), "wh-404", payload)
	assert.True(t, persistence.IsAutomationNotFound(err))

	_, err = dispatcher.DispatchWebhook(t.Context(), "wh-2", map[string]any{"order": "A-2"})
	assert.ErrorIs(t, err, trigger.ErrMissingContact)
}
