// Package install drives a provisioning run through the stage registry and
// exposes its status.
package install

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	appsession "github.com/mediastackhq/mediastack/api/pkg/managers/session"
	"github.com/mediastackhq/mediastack/api/internal/statemachine"
	"github.com/mediastackhq/mediastack/api/types"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/compose"
	"github.com/mediastackhq/mediastack/pkg/stages"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

const (
	StateIdle      statemachine.State = "Idle"
	StateRunning   statemachine.State = "Running"
	StateSucceeded statemachine.State = "Succeeded"
	StateFailed    statemachine.State = "Failed"
)

// maxStageAttempts bounds retries of a stage that keeps failing recoverably.
const maxStageAttempts = 3

var validStateTransitions = map[statemachine.State][]statemachine.State{
	StateIdle:      {StateRunning},
	StateRunning:   {StateSucceeded, StateFailed},
	StateSucceeded: {},
	StateFailed:    {},
}

var _ Controller = (*InstallController)(nil)

// Controller handles provisioning run operations.
type Controller interface {
	// Start launches a new provisioning run in the background. It returns a
	// conflict error while a run is in progress.
	Start(ctx context.Context, req types.InstallRequest) error
	// Status returns a point-in-time snapshot of the current session.
	Status(ctx context.Context) (types.InstallStatusResponse, error)
}

// InstallController orchestrates the stage executors against the session.
type InstallController struct {
	sessionManager appsession.Manager
	executors      []stages.Executor
	collector      sysinfo.Collector
	logger         logrus.FieldLogger

	mu           sync.Mutex
	stateMachine statemachine.Interface
}

type InstallControllerOption func(*InstallController)

func WithSessionManager(manager appsession.Manager) InstallControllerOption {
	return func(c *InstallController) {
		c.sessionManager = manager
	}
}

func WithExecutors(executors []stages.Executor) InstallControllerOption {
	return func(c *InstallController) {
		c.executors = executors
	}
}

func WithCollector(collector sysinfo.Collector) InstallControllerOption {
	return func(c *InstallController) {
		c.collector = collector
	}
}

func WithLogger(logger logrus.FieldLogger) InstallControllerOption {
	return func(c *InstallController) {
		c.logger = logger
	}
}

// NewInstallController creates an install controller.
func NewInstallController(opts ...InstallControllerOption) (*InstallController, error) {
	c := &InstallController{}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.sessionManager == nil {
		c.sessionManager = appsession.NewManager(appsession.WithLogger(c.logger))
	}
	if c.executors == nil {
		c.executors = stages.NewExecutors(stages.WithLogger(c.logger))
	}
	if c.collector == nil {
		c.collector = sysinfo.NewCollector(sysinfo.WithLogger(c.logger))
	}

	registry := make(stages.Registry, 0, len(c.executors))
	for _, executor := range c.executors {
		registry = append(registry, executor.Stage())
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage registry: %w", err)
	}

	return c, nil
}

func (c *InstallController) Start(ctx context.Context, req types.InstallRequest) (finalErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bundle := bundleFromRequest(req)

	if err := c.sessionManager.Begin(bundle); err != nil {
		if errors.Is(err, types.ErrInstallationInProgress) {
			return types.NewConflictError(err)
		}
		return err
	}

	// A fresh run gets a fresh state machine; terminal states are final.
	sm := statemachine.New(StateIdle, validStateTransitions, statemachine.WithLogger(c.logger))
	c.registerReportingHandlers(sm)
	c.stateMachine = sm

	lock, err := sm.AcquireLock()
	if err != nil {
		return types.NewConflictError(err)
	}

	defer func() {
		if r := recover(); r != nil {
			finalErr = fmt.Errorf("panic: %v: %s", r, string(debug.Stack()))
		}
		if finalErr != nil {
			lock.Release()
		}
	}()

	if err := sm.Transition(lock, StateRunning); err != nil {
		return types.NewConflictError(err)
	}

	go func() (finalErr error) {
		// Background context is used to avoid canceling the run if the
		// request context is canceled.
		ctx := context.Background()

		defer lock.Release()

		defer func() {
			if r := recover(); r != nil {
				finalErr = fmt.Errorf("panic: %v: %s", r, string(debug.Stack()))
			}
			if finalErr != nil {
				c.logger.Error(finalErr)

				if err := sm.Transition(lock, StateFailed); err != nil {
					c.logger.Errorf("failed to transition states: %v", err)
				}
				if err := c.sessionManager.Fail(); err != nil {
					c.logger.Errorf("failed to mark session failed: %v", err)
				}
			} else {
				if err := sm.Transition(lock, StateSucceeded); err != nil {
					c.logger.Errorf("failed to transition states: %v", err)
				}
			}
		}()

		if err := c.runStages(ctx, bundle); err != nil {
			return err
		}

		if err := c.sessionManager.Complete(c.buildResultSummary(bundle)); err != nil {
			return fmt.Errorf("failed to complete session: %w", err)
		}

		return nil
	}()

	return nil
}

func (c *InstallController) Status(ctx context.Context) (types.InstallStatusResponse, error) {
	session, err := c.sessionManager.Get()
	if err != nil {
		return types.InstallStatusResponse{}, fmt.Errorf("get session: %w", err)
	}
	return types.NewInstallStatusResponse(session), nil
}

// runStages executes every registry stage in order, retrying recoverable
// failures up to the attempt bound.
func (c *InstallController) runStages(ctx context.Context, bundle appconfig.Bundle) error {
	for _, executor := range c.executors {
		stage := executor.Stage()

		if err := c.sessionManager.BeginStage(stage); err != nil {
			return fmt.Errorf("begin stage %s: %w", stage.ID, err)
		}

		var err error
		for attempt := 1; attempt <= maxStageAttempts; attempt++ {
			if attempt > 1 {
				c.sessionManager.Log("Retrying stage %s (attempt %d of %d)", stage.DisplayName, attempt, maxStageAttempts)
			}

			err = c.executeStage(ctx, executor)
			if err == nil {
				break
			}
			if !stages.IsRecoverable(err) {
				break
			}
			c.sessionManager.Log("Stage %s failed with a recoverable error: %v", stage.DisplayName, err)
		}

		if err != nil {
			c.sessionManager.RecordError(types.StageError{
				StageID:     stage.ID,
				Message:     err.Error(),
				Recoverable: stages.IsRecoverable(err),
			})
			return fmt.Errorf("stage %s failed: %w", stage.ID, err)
		}

		if err := c.sessionManager.CompleteStage(stage); err != nil {
			return fmt.Errorf("complete stage %s: %w", stage.ID, err)
		}
	}

	return nil
}

// executeStage isolates a single executor attempt so a panicking executor
// fails its stage instead of the whole process.
func (c *InstallController) executeStage(ctx context.Context, executor stages.Executor) (finalErr error) {
	defer func() {
		if r := recover(); r != nil {
			finalErr = fmt.Errorf("panic: %v: %s", r, string(debug.Stack()))
		}
	}()

	return executor.Execute(ctx, c.sessionManager.StageHandle(executor.Stage()))
}

func (c *InstallController) buildResultSummary(bundle appconfig.Bundle) map[string]string {
	host, err := c.collector.PrimaryIP()
	if err != nil {
		host = "localhost"
	}
	return compose.ServiceURLs(bundle.Services, host)
}

// bundleFromRequest merges the request with defaults so an empty install
// request provisions the stock stack.
func bundleFromRequest(req types.InstallRequest) appconfig.Bundle {
	bundle := appconfig.Bundle{
		Config:   req.UserConfig,
		Network:  req.NetworkConfig,
		Storage:  req.StorageConfig,
		Services: req.Services,
	}

	if bundle.Config == (appconfig.Config{}) {
		bundle.Config = appconfig.DefaultConfig()
	}
	if len(bundle.Services.Enabled()) == 0 {
		bundle.Services = appconfig.DefaultServices()
	}
	if bundle.Storage.MediaDirectory != "" {
		bundle.Config.MediaDir = bundle.Storage.MediaDirectory
	}
	if bundle.Storage.DownloadsDirectory != "" {
		bundle.Config.DownloadsDir = bundle.Storage.DownloadsDirectory
	}

	return bundle
}
