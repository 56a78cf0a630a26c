package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/relay/pkg/cmd"
	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/mocks"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence/file"
	"github.com/dukex/relay/pkg/trigger"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app       *fiber.App
	store     *file.Persistence
	messenger *mocks.MockMessenger
}

func setupTestApp(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	messenger := &mocks.MockMessenger{}

	bus, err := cmd.NewEventBus("memory", "relay-api-test", nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	runner := engine.New(store, messenger, logger)

	return &testServer{
		app:       NewAPI(logger, store, bus, runner).App(),
		store:     store,
		messenger: messenger,
	}
}

func (s *testServer) call(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, payload
}

func TestAPI_RootEndpoint(t *testing.T) {
	server := setupTestApp(t)

	status, body := server.call(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Relay API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	server := setupTestApp(t)

	status, _ := server.call(t, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_WebhookRunsAutomation(t *testing.T) {
	server := setupTestApp(t)
	ctx := t.Context()

	require.NoError(t, server.store.ContactRepository().SaveContact(ctx, &models.Contact{ID: "7", Name: "Ana", Phone: "+5511999990000"}))
	require.NoError(t, server.store.ConnectionRepository().SaveConnection(ctx, &models.Connection{
		ID: "main", PhoneNumberID: "1234", AccessToken: "secret", Active: true,
	}))

	status, body := server.call(t, http.MethodPost, "/automations", `{
		"name": "Order follow-up",
		"nodes": [
			{"id": "hook", "kind": "trigger", "subtype": "webhook", "data": {"webhook_id": "wh-orders"}},
			{"id": "send", "kind": "action", "subtype": "send_message", "data": {"message_type": "text", "text": "Order {{webhook.order}} for {{contact.name}}"}}
		],
		"edges": [{"id": "e1", "source": "hook", "target": "send"}]
	}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created models.Automation
	require.NoError(t, json.Unmarshal(body, &created))

	status, body = server.call(t, http.MethodPatch, "/automations/"+created.ID+"/status", `{"status": "active"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	server.messenger.On("SendText", mock.Anything, mock.Anything, mock.Anything, "Order A-42 for Ana").
		Return("wamid.1", nil).Once()

	status, body = server.call(t, http.MethodPost, "/webhooks/wh-orders", `{"contact_id": "7", "order": "A-42"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	var summary trigger.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, engine.StatusCompleted, summary.Results[0].Status)
	assert.Equal(t, []string{"hook", "send"}, summary.Results[0].Visited)

	server.messenger.AssertExpectations(t)

	status, body = server.call(t, http.MethodGet, "/automations/"+created.ID+"/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"send":{"total":1,"success":1,"error":0}`)

	status, _ = server.call(t, http.MethodPost, "/webhooks/wh-unknown", `{"contact_id": "7"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = server.call(t, http.MethodPost, "/webhooks/wh-orders", `{"order": "A-43"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}
