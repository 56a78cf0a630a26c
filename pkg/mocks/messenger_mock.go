package mocks

import (
	"context"

	"github.com/dukex/relay/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockMessenger is a mock implementation of executor.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendText(ctx context.Context, connection *models.Connection, to, text string) (string, error) {
	args := m.Called(ctx, connection, to, text)

	return args.String(0), args.Error(1)
}

func (m *MockMessenger) SendTemplate(ctx context.Context, connection *models.Connection, to string, template *models.Template, parameters []string) (string, error) {
	args := m.Called(ctx, connection, to, template, parameters)

	return args.String(0), args.Error(1)
}

func (m *MockMessenger) SendFlow(ctx context.Context, connection *models.Connection, to string, flow models.FlowMessage) (string, error) {
	args := m.Called(ctx, connection, to, flow)

	return args.String(0), args.Error(1)
}

// MockForwarder is a mock implementation of executor.Forwarder.
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, target *models.Automation, contactID string, vars map[string]any) error {
	args := m.Called(ctx, target, contactID, vars)

	return args.Error(0)
}
