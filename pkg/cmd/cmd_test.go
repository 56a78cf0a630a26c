package cmd_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/relay/pkg/cmd"
	"github.com/dukex/relay/pkg/engine"
	"github.com/dukex/relay/pkg/events"
	"github.com/dukex/relay/pkg/mocks"
	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPersistence(t *testing.T) {
	store, err := cmd.NewPersistence(t.Context(), discard(), "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)
	assert.NoError(t, store.HealthCheck(t.Context()))

	for _, url := range []string{"mysql://localhost/relay", "relay.db", ""} {
		_, err := cmd.NewPersistence(t.Context(), discard(), url)
		assert.ErrorIs(t, err, cmd.ErrUnsupportedDatabase, url)
	}
}

func TestNewEventBus(t *testing.T) {
	bus, err := cmd.NewEventBus("memory", "relay-test", nil, discard())
	require.NoError(t, err)
	assert.NotEmpty(t, bus.GenerateID())
	assert.NoError(t, bus.Close())

	_, err = cmd.NewEventBus("kafka", "relay-test", nil, discard())
	assert.Error(t, err)

	_, err = cmd.NewEventBus("nats", "relay-test", nil, discard())
	assert.ErrorIs(t, err, cmd.ErrUnsupportedEventBus)
}

func TestNewEngine(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	e, err := cmd.NewEngine(store, discard(), cmd.EngineConfig{Timezone: "UTC"})
	require.NoError(t, err)
	assert.NotNil(t, e)

	_, err = cmd.NewEngine(store, discard(), cmd.EngineConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestNewRunNotifier(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "7", mock.MatchedBy(func(event *events.RunFinished) bool {
		return event.RunID == "run-1" &&
			event.Status == "suspended" &&
			event.TaskID == "task-1" &&
			event.WorkerID == "worker-a" &&
			event.Stats["send"].Success == 1
	})).Return(errors.New("broker down")).Once()

	notify := cmd.NewRunNotifier(bus, "worker-a", discard())
	notify(t.Context(), &engine.Result{
		RunID:        "run-1",
		AutomationID: "a",
		ContactID:    "7",
		Status:       engine.StatusSuspended,
		Visited:      []string{"t", "send", "wait"},
		Stats:        models.Stats{"send": {Total: 1, Success: 1}},
		TaskID:       "task-1",
	})

	bus.AssertExpectations(t)
}
