package install

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mediastackhq/mediastack/api/types"
)

var _ Controller = (*MockController)(nil)

// MockController is a mock implementation of the Controller interface.
type MockController struct {
	mock.Mock
}

// Start mocks the Start method.
func (m *MockController) Start(ctx context.Context, req types.InstallRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// Status mocks the Status method.
func (m *MockController) Status(ctx context.Context) (types.InstallStatusResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.InstallStatusResponse), args.Error(1)
}
