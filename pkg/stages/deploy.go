package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/compose"
	"github.com/mediastackhq/mediastack/pkg/dockercli"
)

// composeGenerationExecutor renders the compose project for the selected
// services and persists the selection.
type composeGenerationExecutor struct {
	stage     Stage
	generator compose.Generator
	configMgr appconfig.Manager
}

func (e *composeGenerationExecutor) Stage() Stage { return e.stage }

func (e *composeGenerationExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	bundle := handle.Config()

	enabled := bundle.Services.Enabled()
	if len(enabled) == 0 {
		return fmt.Errorf("no services selected")
	}
	handle.Log("Generating compose project for %d services", len(enabled))

	handle.SetProgress(40)
	composePath, envPath, err := e.generator.Generate(bundle)
	if err != nil {
		return RecoverableErr(fmt.Errorf("generate compose project: %w", err))
	}
	handle.Log("Wrote %s", composePath)
	handle.Log("Wrote %s", envPath)

	handle.SetProgress(80)
	if err := e.configMgr.SetServices(bundle.Services); err != nil {
		return RecoverableErr(fmt.Errorf("persist service selection: %w", err))
	}

	handle.SetProgress(100)
	return nil
}

// containerCreationExecutor brings the compose project up.
type containerCreationExecutor struct {
	stage      Stage
	docker     dockercli.Client
	composeDir string
}

func (e *containerCreationExecutor) Stage() Stage { return e.stage }

func (e *containerCreationExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(5)
	handle.Log("Creating containers")

	writer := newHandleWriter(handle)
	defer writer.Flush()

	composeFile := filepath.Join(e.composeDir, compose.ComposeFilename)
	envFile := filepath.Join(e.composeDir, compose.EnvFilename)

	// Image pulls and container creation dominate the run; the CLI gives no
	// usable progress stream so the stage jumps once the project is up.
	if err := e.docker.ComposeUp(ctx, composeFile, envFile, writer); err != nil {
		return RecoverableErr(fmt.Errorf("compose up: %w", err))
	}

	handle.Log("Containers created")
	handle.SetProgress(100)
	return nil
}

// serviceStartExecutor makes sure every selected service's container is
// actually running after the compose project came up.
type serviceStartExecutor struct {
	stage  Stage
	docker dockercli.Client
}

func (e *serviceStartExecutor) Stage() Stage { return e.stage }

func (e *serviceStartExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(5)
	handle.Log("Verifying services are running")

	containers, err := e.docker.ListContainers(ctx)
	if err != nil {
		return RecoverableErr(fmt.Errorf("list containers: %w", err))
	}

	byName := make(map[string]dockercli.Container, len(containers))
	for _, c := range containers {
		byName[c.Name] = c
	}

	enabled := handle.Config().Services.Enabled()
	var failed []string
	for i, name := range enabled {
		container, ok := byName[name]
		switch {
		case !ok:
			handle.Log("Warning: no container found for %s", name)
			failed = append(failed, name)
		case container.State == "running":
			handle.Log("%s is running", name)
		default:
			handle.Log("Starting %s (state %s)", name, container.State)
			if err := e.docker.StartContainer(ctx, name); err != nil {
				handle.Log("Warning: could not start %s: %v", name, err)
				failed = append(failed, name)
			}
		}
		handle.SetProgress(float64(i+1) / float64(len(enabled)) * 100)
	}

	if len(failed) > 0 {
		return Recoverablef("services not running: %v", failed)
	}

	handle.SetProgress(100)
	return nil
}
