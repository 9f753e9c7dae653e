package sysinfo

import (
	"github.com/stretchr/testify/mock"
)

var _ Collector = (*MockCollector)(nil)

// MockCollector is a mock implementation of the Collector interface.
type MockCollector struct {
	mock.Mock
}

// Collect mocks the Collect method.
func (m *MockCollector) Collect() (Info, error) {
	args := m.Called()
	return args.Get(0).(Info), args.Error(1)
}

// MemoryInfo mocks the MemoryInfo method.
func (m *MockCollector) MemoryInfo() (Memory, error) {
	args := m.Called()
	return args.Get(0).(Memory), args.Error(1)
}

// DiskInfo mocks the DiskInfo method.
func (m *MockCollector) DiskInfo(path string) (Disk, error) {
	args := m.Called(path)
	return args.Get(0).(Disk), args.Error(1)
}

// PrimaryIP mocks the PrimaryIP method.
func (m *MockCollector) PrimaryIP() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}
