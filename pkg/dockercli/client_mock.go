package dockercli

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

var _ Client = (*MockClient)(nil)

// MockClient is a mock implementation of Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Installed(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockClient) EngineActive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) InstallEngine(ctx context.Context, logs io.Writer) error {
	args := m.Called(ctx, logs)
	return args.Error(0)
}

func (m *MockClient) StartEngine(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) ComposeUp(ctx context.Context, composeFile, envFile string, logs io.Writer) error {
	args := m.Called(ctx, composeFile, envFile, logs)
	return args.Error(0)
}

func (m *MockClient) ListContainers(ctx context.Context) ([]Container, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Container), args.Error(1)
}

func (m *MockClient) StartContainer(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockClient) StopContainer(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockClient) RestartContainer(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
