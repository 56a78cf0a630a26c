package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/template"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxHTTPTimeout     = 120 * time.Second
	maxResponseBytes   = 1 << 20
)

func requestTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultHTTPTimeout
	}

	return min(time.Duration(seconds)*time.Second, maxHTTPTimeout)
}

// httpRequest calls the configured endpoint and copies mapped response values onto the contact.
func (e *Executor) httpRequest(ctx context.Context, run *Run, node *models.Node, data *models.HTTPRequestAction) error {
	contact, err := e.contact(ctx, run)
	if err != nil {
		return err
	}

	vars := run.Context(contact)

	method := strings.ToUpper(strings.TrimSpace(data.Method))
	if method == "" {
		method = http.MethodGet
	}

	url := template.Interpolate(data.URL, vars)
	body := template.Interpolate(data.Body, vars)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout(data.TimeoutSeconds))
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range template.InterpolateMap(data.Headers, vars) {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if len(strings.TrimSpace(string(respBody))) == 0 && len(data.ResponseMapping) == 0 {
		return nil
	}

	var payload any

	err = json.Unmarshal(respBody, &payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if len(data.ResponseMapping) == 0 {
		return nil
	}

	patch, err := e.mapResponse(ctx, payload, data.ResponseMapping)
	if err != nil {
		return err
	}

	if patch == nil {
		e.nodeLogger(ctx, run, node).DebugContext(ctx, "Response mapping matched no values")

		return nil
	}

	_, err = e.contacts.UpdateContact(ctx, contact.ID, *patch)
	if err != nil {
		return fmt.Errorf("failed to write mapped response fields: %w", err)
	}

	return nil
}

// mapResponse builds a contact patch from the mapping. It returns nil when nothing matched.
func (e *Executor) mapResponse(ctx context.Context, payload any, mappings []models.ResponseMapping) (*models.ContactPatch, error) {
	var (
		patch   models.ContactPatch
		matched bool
	)

	for _, mapping := range mappings {
		if mapping.Field == "" {
			continue
		}

		value, ok, err := e.jq.extract(ctx, mapping.Path, payload)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		matched = true

		switch mapping.Field {
		case "name":
			name := template.Stringify(value)
			patch.Name = &name
		case "phone":
			phone := template.Stringify(value)
			patch.Phone = &phone
		default:
			if patch.Fields == nil {
				patch.Fields = make(map[string]any)
			}

			patch.Fields[mapping.Field] = value
		}
	}

	if !matched {
		return nil, nil
	}

	return &patch, nil
}
