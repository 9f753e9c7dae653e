package stages

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/mediastackhq/mediastack/pkg/dockercli"
	"github.com/mediastackhq/mediastack/pkg/helpers"
)

var requiredCommands = []string{"curl", "git"}

// dependencyInstallExecutor makes sure the host tools the later stages shell
// out to are present, installing them through apt when available.
type dependencyInstallExecutor struct {
	stage Stage
}

func (e *dependencyInstallExecutor) Stage() Stage { return e.stage }

func (e *dependencyInstallExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Checking required dependencies")

	var missing []string
	for _, name := range requiredCommands {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	handle.SetProgress(30)

	if len(missing) == 0 {
		handle.Log("All dependencies already installed")
		handle.SetProgress(100)
		return nil
	}

	if _, err := exec.LookPath("apt-get"); err != nil {
		return fmt.Errorf("missing dependencies %v and no supported package manager found", missing)
	}

	handle.Log("Installing missing dependencies: %v", missing)
	writer := newHandleWriter(handle)
	defer writer.Flush()

	opts := helpers.RunCommandOptions{Writer: writer, ErrWriter: writer}
	if err := helpers.RunCommandWithOptions(ctx, opts, "apt-get", "update"); err != nil {
		return RecoverableErr(fmt.Errorf("apt-get update: %w", err))
	}
	handle.SetProgress(60)

	args := append([]string{"install", "-y"}, missing...)
	if err := helpers.RunCommandWithOptions(ctx, opts, "apt-get", args...); err != nil {
		return RecoverableErr(fmt.Errorf("apt-get install: %w", err))
	}

	handle.Log("Dependencies installed")
	handle.SetProgress(100)
	return nil
}

// dockerSetupExecutor installs the docker engine when absent and makes sure
// it is running.
type dockerSetupExecutor struct {
	stage  Stage
	docker dockercli.Client
}

func (e *dockerSetupExecutor) Stage() Stage { return e.stage }

func (e *dockerSetupExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)

	writer := newHandleWriter(handle)
	defer writer.Flush()

	if !e.docker.Installed(ctx) {
		handle.Log("Docker not found, installing engine")
		if err := e.docker.InstallEngine(ctx, writer); err != nil {
			return RecoverableErr(fmt.Errorf("install docker engine: %w", err))
		}
		handle.Log("Docker engine installed")
	} else {
		handle.Log("Docker already installed")
	}
	handle.SetProgress(60)

	active, err := e.docker.EngineActive(ctx)
	if err != nil {
		return RecoverableErr(fmt.Errorf("check docker engine: %w", err))
	}
	if !active {
		handle.Log("Starting docker engine")
		if err := e.docker.StartEngine(ctx); err != nil {
			return RecoverableErr(fmt.Errorf("start docker engine: %w", err))
		}
	}

	handle.Log("Docker engine is running")
	handle.SetProgress(100)
	return nil
}
