// Package messaging sends outbound messages through the WhatsApp Cloud API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/relay/pkg/models"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"

	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
)

var (
	ErrInvalidConnection = errors.New("messaging connection is missing a phone number id or access token")
	ErrNoMessageID       = errors.New("provider response carries no message id")
)

// APIError is a non-2xx answer of the Cloud API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements executor.Messenger. It holds no per-connection state.
type Client struct {
	baseURL string
	http    Doer
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(client Doer) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "whatsapp"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type language struct {
	Code string `json:"code"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type templateBody struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type flowParameters struct {
	FlowMessageVersion string `json:"flow_message_version"`
	FlowID             string `json:"flow_id"`
	FlowCTA            string `json:"flow_cta"`
	FlowAction         string `json:"flow_action"`
}

type interactiveBody struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Name       string         `json:"name"`
		Parameters flowParameters `json:"parameters"`
	} `json:"action"`
}

type outboundMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textBody        `json:"text,omitempty"`
	Template         *templateBody    `json:"template,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func newMessage(to, kind string) *outboundMessage {
	return &outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalizePhone(to),
		Type:             kind,
	}
}

func (c *Client) SendText(ctx context.Context, connection *models.Connection, to, text string) (string, error) {
	message := newMessage(to, "text")
	message.Text = &textBody{Body: text}

	return c.send(ctx, connection, message)
}

func (c *Client) SendTemplate(ctx context.Context, connection *models.Connection, to string, template *models.Template, parameters []string) (string, error) {
	message := newMessage(to, "template")
	message.Template = &templateBody{
		Name:     template.Name,
		Language: language{Code: template.Language},
	}

	if len(parameters) > 0 {
		body := component{Type: "body", Parameters: make([]parameter, len(parameters))}
		for i, value := range parameters {
			body.Parameters[i] = parameter{Type: "text", Text: value}
		}

		message.Template.Components = []component{body}
	}

	return c.send(ctx, connection, message)
}

func (c *Client) SendFlow(ctx context.Context, connection *models.Connection, to string, flow models.FlowMessage) (string, error) {
	interactive := &interactiveBody{Type: "flow"}
	interactive.Body.Text = flow.Body
	interactive.Action.Name = "flow"
	interactive.Action.Parameters = flowParameters{
		FlowMessageVersion: "3",
		FlowID:             flow.FlowID,
		FlowCTA:            flow.CTA,
		FlowAction:         "navigate",
	}

	message := newMessage(to, "interactive")
	message.Interactive = interactive

	return c.send(ctx, connection, message)
}

func (c *Client) send(ctx context.Context, connection *models.Connection, message *outboundMessage) (string, error) {
	if connection == nil || connection.PhoneNumberID == "" || connection.AccessToken == "" {
		return "", ErrInvalidConnection
	}

	version := connection.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, version, connection.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+connection.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read whatsapp response: %w", err)
	}

	var decoded sendResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if decodeErr == nil && decoded.Error != nil {
			apiErr.Code = decoded.Error.Code
			apiErr.Message = decoded.Error.Message
		}

		return "", apiErr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode whatsapp response: %w", decodeErr)
	}

	if len(decoded.Messages) == 0 || decoded.Messages[0].ID == "" {
		return "", ErrNoMessageID
	}

	c.logger.DebugContext(ctx, "Message accepted",
		"type", message.Type, "connection_id", connection.ID, "message_id", decoded.Messages[0].ID)

	return decoded.Messages[0].ID, nil
}

// normalizePhone keeps only the digits of an E.164 style number.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}

		return -1
	}, phone)
}
