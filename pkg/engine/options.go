package engine

import (
	"time"

	"github.com/dukex/relay/pkg/executor"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Engine)

// WithMaxSteps bounds the nodes a single walk may visit. Non-positive values are ignored.
func WithMaxSteps(steps int) Option {
	return func(e *Engine) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

// WithMaxForwardDepth bounds how many automations a forward chain may hold.
func WithMaxForwardDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxForwardDepth = depth
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithHTTPClient(client executor.HTTPDoer) Option {
	return func(e *Engine) {
		e.httpClient = client
	}
}

// WithLocation sets the business hours fallback timezone.
func WithLocation(location *time.Location) Option {
	return func(e *Engine) {
		e.location = location
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}
