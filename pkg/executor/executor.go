// Package executor performs the side effect of a single automation node.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/relay/pkg/log"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/router"
)

// Messenger delivers outbound messages through the messaging provider.
// Each call returns the provider's message id.
type Messenger interface {
	SendText(ctx context.Context, connection *models.Connection, to, text string) (string, error)
	SendTemplate(ctx context.Context, connection *models.Connection, to string, template *models.Template, parameters []string) (string, error)
	SendFlow(ctx context.Context, connection *models.Connection, to string, flow models.FlowMessage) (string, error)
}

// HTTPDoer issues outbound requests for http_request nodes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Forwarder starts a run of another automation for the same contact without waiting for it.
type Forwarder interface {
	Forward(ctx context.Context, target *models.Automation, contactID string, vars map[string]any) error
}

// Run is the state of one walk that node side effects may read.
type Run struct {
	Automation   *models.Automation
	Routes       *router.Routes
	ContactID    string
	ConnectionID string
	// Vars is the non-contact part of the run context (event, message, webhook).
	Vars map[string]any
}

// Context builds the interpolation context for contact.
func (r *Run) Context(contact *models.Contact) map[string]any {
	data := make(map[string]any, len(r.Vars)+1)
	for k, v := range r.Vars {
		data[k] = v
	}

	if contact != nil {
		data["contact"] = contact.Vars()
	}

	return data
}

// Outcome tells the run loop what to do after a node succeeded.
type Outcome struct {
	// Suspend ends the run; a deferred task holds the continuation.
	Suspend bool
	TaskID  string
	FireAt  time.Time
}

// Executor runs node side effects against the stores and external collaborators.
type Executor struct {
	contacts    persistence.ContactRepository
	automations persistence.AutomationRepository
	tasks       persistence.DeferredTaskRepository
	crm         persistence.CRMRepository
	templates   persistence.TemplateRepository
	connections persistence.ConnectionRepository
	messages    persistence.MessageRepository

	messenger  Messenger
	httpClient HTTPDoer
	forwarder  Forwarder
	now        func() time.Time
	jq         *jqCache
	logger     *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the client used by http_request nodes.
func WithHTTPClient(client HTTPDoer) Option {
	return func(e *Executor) {
		e.httpClient = client
	}
}

// WithClock replaces time.Now when computing wait deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithForwarder sets the collaborator that starts forwarded runs.
func WithForwarder(forwarder Forwarder) Option {
	return func(e *Executor) {
		e.forwarder = forwarder
	}
}

// New creates an executor backed by store.
func New(store persistence.Persistence, messenger Messenger, logger *slog.Logger, opts ...Option) *Executor {
	executor := &Executor{
		contacts:    store.ContactRepository(),
		automations: store.AutomationRepository(),
		tasks:       store.DeferredTaskRepository(),
		crm:         store.CRMRepository(),
		templates:   store.TemplateRepository(),
		connections: store.ConnectionRepository(),
		messages:    store.MessageRepository(),
		messenger:   messenger,
		httpClient:  &http.Client{Timeout: maxHTTPTimeout},
		now:         time.Now,
		jq:          newJQCache(),
		logger:      logger.With("module", "executor"),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the side effect of node once. A returned error fails only this node.
func (e *Executor) Execute(ctx context.Context, run *Run, node *models.Node) (Outcome, error) {
	switch data := node.Data.(type) {
	case *models.SendMessageAction:
		return Outcome{}, e.sendMessage(ctx, run, node, data)
	case *models.WaitAction:
		return e.wait(ctx, run, node, data)
	case *models.TagAction:
		return Outcome{}, e.changeTag(ctx, run, node, data)
	case *models.MoveCRMStageAction:
		return Outcome{}, e.moveCRMStage(ctx, run, node, data)
	case *models.OptOutAction:
		return Outcome{}, e.optOut(ctx, run)
	case *models.ForwardAutomationAction:
		return Outcome{}, e.forward(ctx, run, node, data)
	case *models.HTTPRequestAction:
		return Outcome{}, e.httpRequest(ctx, run, node, data)
	case *models.ConditionalAction, *models.RandomizerAction:
		return Outcome{}, nil
	case *models.ContactCreatedTrigger, *models.TagAddedTrigger, *models.CRMStageChangedTrigger,
		*models.ContextMessageTrigger, *models.WebhookTrigger:
		return Outcome{}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: node %q has subtype %q", ErrUnsupportedNode, node.ID, node.Subtype)
	}
}

func (e *Executor) contact(ctx context.Context, run *Run) (*models.Contact, error) {
	contact, err := e.contacts.ContactByID(ctx, run.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}

	return contact, nil
}

// nodeLogger prefers the run logger the engine stores in ctx.
func (e *Executor) nodeLogger(ctx context.Context, run *Run, node *models.Node) *slog.Logger {
	fallback := e.logger.With("automation_id", run.Automation.ID, "contact_id", run.ContactID)

	return log.FromContext(ctx, fallback).With("node_id", node.ID, "subtype", node.Subtype)
}
