package compose

import (
	"github.com/stretchr/testify/mock"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

var _ Generator = (*MockGenerator)(nil)

// MockGenerator is a mock implementation of the Generator interface.
type MockGenerator struct {
	mock.Mock
}

// Generate mocks the Generate method.
func (m *MockGenerator) Generate(bundle appconfig.Bundle) (string, string, error) {
	args := m.Called(bundle)
	return args.String(0), args.String(1), args.Error(2)
}
