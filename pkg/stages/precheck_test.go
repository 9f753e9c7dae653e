package stages

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

func TestPreCheck_CompatibleHost(t *testing.T) {
	collector := &sysinfo.MockCollector{}
	collector.On("Collect").Return(sysinfo.Info{
		Memory:          sysinfo.Memory{Total: 8 << 30},
		Disk:            sysinfo.Disk{Free: 50 << 30},
		DockerInstalled: true,
	}, nil)

	e := &preCheckExecutor{stage: Stage{ID: "pre_check"}, collector: collector}
	handle := &fakeHandle{}

	err := e.Execute(context.Background(), handle)
	require.NoError(t, err)

	assert.Equal(t, float64(100), handle.lastProgress())
	assert.True(t, handle.hasLogContaining("Memory: 8.0GB"))
	assert.True(t, handle.hasLogContaining("Docker: installed"))
	assert.False(t, handle.hasLogContaining("Warning"))
	collector.AssertExpectations(t)
}

func TestPreCheck_LowResourcesStillSucceeds(t *testing.T) {
	collector := &sysinfo.MockCollector{}
	collector.On("Collect").Return(sysinfo.Info{
		Memory: sysinfo.Memory{Total: 1 << 30},
		Disk:   sysinfo.Disk{Free: 2 << 30},
	}, nil)

	e := &preCheckExecutor{stage: Stage{ID: "pre_check"}, collector: collector}
	handle := &fakeHandle{}

	err := e.Execute(context.Background(), handle)
	require.NoError(t, err)

	assert.True(t, handle.hasLogContaining("below the recommended 2GB"))
	assert.True(t, handle.hasLogContaining("below the recommended 10GB"))
	assert.True(t, handle.hasLogContaining("not installed"))
	assert.Equal(t, float64(100), handle.lastProgress())
}

func TestPreCheck_CollectFailureStillSucceeds(t *testing.T) {
	collector := &sysinfo.MockCollector{}
	collector.On("Collect").Return(sysinfo.Info{}, fmt.Errorf("no meminfo"))

	e := &preCheckExecutor{stage: Stage{ID: "pre_check"}, collector: collector}
	handle := &fakeHandle{}

	err := e.Execute(context.Background(), handle)
	require.NoError(t, err)
	assert.True(t, handle.hasLogContaining("could not collect system information"))
	assert.Equal(t, float64(100), handle.lastProgress())
}
