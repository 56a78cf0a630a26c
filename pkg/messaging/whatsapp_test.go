package messaging_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/relay/pkg/messaging"
	"github.com/dukex/relay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path          string
	authorization string
	body          map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()

	got := &captured{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.authorization = r.Header.Get("Authorization")

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &got.body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, got
}

func newClient(server *httptest.Server) *messaging.Client {
	return messaging.NewClient(server.URL+"/", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var connection = &models.Connection{ID: "main", PhoneNumberID: "1234", AccessToken: "secret"}

func TestClient_SendText(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.ABC"}]}`)

	id, err := newClient(server).SendText(t.Context(), connection, "+55 (11) 99999-0000", "Hi Ana")
	require.NoError(t, err)

	assert.Equal(t, "wamid.ABC", id)
	assert.Equal(t, "/v21.0/1234/messages", got.path)
	assert.Equal(t, "Bearer secret", got.authorization)
	assert.Equal(t, "whatsapp", got.body["messaging_product"])
	assert.Equal(t, "5511999990000", got.body["to"])
	assert.Equal(t, "text", got.body["type"])
	assert.Equal(t, map[string]any{"preview_url": false, "body": "Hi Ana"}, got.body["text"])
}

func TestClient_SendTemplate(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.T"}]}`)

	custom := &models.Connection{ID: "v", PhoneNumberID: "99", AccessToken: "k", APIVersion: "v19.0"}
	template := &models.Template{ID: "welcome", Name: "welcome_v1", Language: "pt_BR", Status: models.TemplateStatusApproved}

	id, err := newClient(server).SendTemplate(t.Context(), custom, "5511", template, []string{"Ana", "VIP"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.T", id)
	assert.Equal(t, "/v19.0/99/messages", got.path)

	assert.Equal(t, map[string]any{
		"name":     "welcome_v1",
		"language": map[string]any{"code": "pt_BR"},
		"components": []any{
			map[string]any{
				"type": "body",
				"parameters": []any{
					map[string]any{"type": "text", "text": "Ana"},
					map[string]any{"type": "text", "text": "VIP"},
				},
			},
		},
	}, got.body["template"])
}

func TestClient_SendTemplateWithoutParameters(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.T"}]}`)

	template := &models.Template{ID: "hello", Name: "hello_world", Language: "en_US"}

	_, err := newClient(server).SendTemplate(t.Context(), connection, "5511", template, nil)
	require.NoError(t, err)
	assert.NotContains(t, got.body["template"], "components")
}

func TestClient_SendFlow(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"messages":[{"id":"wamid.F"}]}`)

	_, err := newClient(server).SendFlow(t.Context(), connection, "5511", models.FlowMessage{FlowID: "f-1", CTA: "Book", Body: "Pick a slot"})
	require.NoError(t, err)

	assert.Equal(t, "interactive", got.body["type"])

	interactive, ok := got.body["interactive"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "flow", interactive["type"])
	assert.Equal(t, map[string]any{"text": "Pick a slot"}, interactive["body"])

	action, ok := interactive["action"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "flow", action["name"])
	assert.Equal(t, map[string]any{
		"flow_message_version": "3",
		"flow_id":              "f-1",
		"flow_cta":             "Book",
		"flow_action":          "navigate",
	}, action["parameters"])
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "api error payload",
			status:   http.StatusBadRequest,
			response: `{"error":{"message":"Recipient not in allowed list","code":131030}}`,
			check: func(t *testing.T, err error) {
				var apiErr *messaging.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
				assert.Equal(t, 131030, apiErr.Code)
				assert.Equal(t, "Recipient not in allowed list", apiErr.Message)
			},
		},
		{
			name:     "non JSON error",
			status:   http.StatusBadGateway,
			response: `{"upstream": `,
			check: func(t *testing.T, err error) {
				var apiErr *messaging.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
			},
		},
		{
			name:     "missing message id",
			status:   http.StatusOK,
			response: `{"messages":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, messaging.ErrNoMessageID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, tt.status, tt.response)

			_, err := newClient(server).SendText(t.Context(), connection, "5511", "hi")
			tt.check(t, err)
		})
	}
}

func TestClient_InvalidConnection(t *testing.T) {
	client := messaging.NewClient("", slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.SendText(t.Context(), &models.Connection{ID: "broken"}, "5511", "hi")
	assert.ErrorIs(t, err, messaging.ErrInvalidConnection)

	_, err = client.SendText(t.Context(), nil, "5511", "hi")
	assert.ErrorIs(t, err, messaging.ErrInvalidConnection)
}
