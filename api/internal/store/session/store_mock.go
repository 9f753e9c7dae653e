package session

import (
	"github.com/stretchr/testify/mock"

	"github.com/mediastackhq/mediastack/api/types"
)

var _ Store = (*MockStore)(nil)

// MockStore is a mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

// Get mocks the Get method.
func (m *MockStore) Get() (types.InstallationSession, error) {
	args := m.Called()
	return args.Get(0).(types.InstallationSession), args.Error(1)
}

// Begin mocks the Begin method.
func (m *MockStore) Begin() error {
	args := m.Called()
	return args.Error(0)
}

// SetCurrentStage mocks the SetCurrentStage method.
func (m *MockStore) SetCurrentStage(stageID, stageName string) error {
	args := m.Called(stageID, stageName)
	return args.Error(0)
}

// SetProgress mocks the SetProgress method.
func (m *MockStore) SetProgress(stageProgress, overallProgress float64) error {
	args := m.Called(stageProgress, overallProgress)
	return args.Error(0)
}

// AppendLog mocks the AppendLog method.
func (m *MockStore) AppendLog(line string) error {
	args := m.Called(line)
	return args.Error(0)
}

// AppendError mocks the AppendError method.
func (m *MockStore) AppendError(stageErr types.StageError) error {
	args := m.Called(stageErr)
	return args.Error(0)
}

// Complete mocks the Complete method.
func (m *MockStore) Complete(summary map[string]string) error {
	args := m.Called(summary)
	return args.Error(0)
}

// Fail mocks the Fail method.
func (m *MockStore) Fail() error {
	args := m.Called()
	return args.Error(0)
}
