// Package web provides HTTP handlers for the automation admin API and the inbound trigger surface.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/relay/pkg/eventbus"
	"github.com/dukex/relay/pkg/events"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/services"
	"github.com/dukex/relay/pkg/trigger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// WebhookDispatcher runs the automation behind an inbound webhook.
type WebhookDispatcher interface {
	DispatchWebhook(ctx context.Context, webhookID string, payload map[string]any) (trigger.Summary, error)
}

type APIHandlers struct {
	automations *services.Automation
	dispatcher  WebhookDispatcher
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	automations *services.Automation,
	dispatcher WebhookDispatcher,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		automations: automations,
		dispatcher:  dispatcher,
		publisher:   publisher,
		validator:   validator,
		logger:      logger.With("module", "web"),
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	a := app.Group("/automations")
	a.Get("/", h.GetAutomations)
	a.Post("/", h.CreateAutomation)
	a.Get("/:id", h.GetAutomation)
	a.Put("/:id", h.UpdateAutomation)
	a.Delete("/:id", h.DeleteAutomation)
	a.Patch("/:id/status", h.SetAutomationStatus)
	a.Get("/:id/stats", h.GetAutomationStats)

	app.Get("/deferred-tasks", h.GetDeferredTasks)
	app.Post("/events", h.PublishEvent)
	app.Post("/webhooks/:webhookId", h.ReceiveWebhook)
	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	req, err := parseListAutomationsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.automations.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"automations":   result.Automations,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func parseListAutomationsRequest(c fiber.Ctx) (*services.ListAutomationsRequest, error) {
	req := &services.ListAutomationsRequest{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if raw := c.Query("status"); raw != "" {
		status := models.AutomationStatus(raw)
		req.Status = &status
	}

	return req, nil
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.automations.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req AutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.automations.Create(c.Context(), req.automation())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req AutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.automations.Update(c.Context(), c.Params("id"), req.automation())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SetAutomationStatus(c fiber.Ctx) error {
	var req StatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.automations.SetStatus(c.Context(), c.Params("id"), req.Status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	err := h.automations.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAutomationStats(c fiber.Ctx) error {
	stats, err := h.automations.Stats(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"automation_id": c.Params("id"),
		"stats":         stats,
	})
}

func (h *APIHandlers) GetDeferredTasks(c fiber.Ctx) error {
	tasks, err := h.automations.Tasks(c.Context(), models.TaskStatus(c.Query("status")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks":       tasks,
		"total_count": len(tasks),
	})
}

// PublishEvent queues a domain event for the workers and answers 202.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	var event models.TriggerEvent
	if err := c.Bind().JSON(&event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(event); err != nil {
		return badRequest(c, err.Error())
	}

	if !event.Type.IsTrigger() {
		return badRequest(c, "unknown trigger type: "+string(event.Type))
	}

	message := events.NewTriggerReceived(event)

	err := h.publisher.Publish(c.Context(), event.ContactID, message)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish trigger event", "error", err, "contact_id", event.ContactID)

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(EventAccepted{EventID: message.ID, Status: "accepted"})
}

// ReceiveWebhook runs the automation owning the webhook id before answering.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	summary, err := h.dispatcher.DispatchWebhook(c.Context(), c.Params("webhookId"), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.automations.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Relay API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Relay API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
