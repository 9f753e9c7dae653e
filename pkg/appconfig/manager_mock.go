package appconfig

import (
	"github.com/stretchr/testify/mock"
)

var _ Manager = (*MockManager)(nil)

// MockManager is a mock implementation of the Manager interface.
type MockManager struct {
	mock.Mock
}

// GetConfig mocks the GetConfig method.
func (m *MockManager) GetConfig() (Config, error) {
	args := m.Called()
	return args.Get(0).(Config), args.Error(1)
}

// SetConfig mocks the SetConfig method.
func (m *MockManager) SetConfig(config Config) error {
	args := m.Called(config)
	return args.Error(0)
}

// GetServices mocks the GetServices method.
func (m *MockManager) GetServices() (Services, error) {
	args := m.Called()
	return args.Get(0).(Services), args.Error(1)
}

// SetServices mocks the SetServices method.
func (m *MockManager) SetServices(services Services) error {
	args := m.Called(services)
	return args.Error(0)
}
