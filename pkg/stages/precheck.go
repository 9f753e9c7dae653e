package stages

import (
	"context"

	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

const (
	minMemoryBytes = 2 << 30  // 2 GiB recommended
	minDiskBytes   = 10 << 30 // 10 GiB free recommended
)

// preCheckExecutor reports host compatibility. It never fails the run;
// shortfalls are surfaced as log warnings so the operator can decide.
type preCheckExecutor struct {
	stage     Stage
	collector sysinfo.Collector
}

func (e *preCheckExecutor) Stage() Stage { return e.stage }

func (e *preCheckExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Starting system compatibility check")

	info, err := e.collector.Collect()
	if err != nil {
		handle.Log("Warning: could not collect system information: %v", err)
		handle.SetProgress(100)
		return nil
	}

	handle.SetProgress(40)
	memoryGB := float64(info.Memory.Total) / (1 << 30)
	if info.Memory.Total < minMemoryBytes {
		handle.Log("Warning: memory %.1fGB is below the recommended 2GB", memoryGB)
	} else {
		handle.Log("Memory: %.1fGB", memoryGB)
	}

	handle.SetProgress(60)
	diskFreeGB := float64(info.Disk.Free) / (1 << 30)
	if info.Disk.Free < minDiskBytes {
		handle.Log("Warning: free disk space %.1fGB is below the recommended 10GB", diskFreeGB)
	} else {
		handle.Log("Free disk space: %.1fGB", diskFreeGB)
	}

	handle.SetProgress(80)
	if info.DockerInstalled {
		handle.Log("Docker: installed")
	} else {
		handle.Log("Docker: not installed (will be installed during setup)")
	}

	if info.RaspberryPi {
		handle.Log("Detected %s", info.PiModel)
	}

	handle.Log("System compatibility check completed")
	handle.SetProgress(100)
	return nil
}
