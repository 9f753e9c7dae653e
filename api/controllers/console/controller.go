// Package console backs the configuration and host inspection endpoints
// that sit alongside the provisioning run.
package console

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/api/types"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/dockercli"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

var _ Controller = (*ConsoleController)(nil)

// Controller handles configuration and host inspection operations.
type Controller interface {
	GetConfig(ctx context.Context) (appconfig.Config, error)
	SetConfig(ctx context.Context, config appconfig.Config) error
	GetServices(ctx context.Context) (appconfig.Services, error)
	SetServices(ctx context.Context, services appconfig.Services) error
	GetSystem(ctx context.Context) (sysinfo.Info, error)
	ListContainers(ctx context.Context) ([]dockercli.Container, error)
	ContainerAction(ctx context.Context, name, action string) error
}

// ConsoleController wires the configuration manager, the host collector and
// the container runtime together.
type ConsoleController struct {
	configManager appconfig.Manager
	collector     sysinfo.Collector
	docker        dockercli.Client
	logger        logrus.FieldLogger
}

type ConsoleControllerOption func(*ConsoleController)

func WithConfigManager(manager appconfig.Manager) ConsoleControllerOption {
	return func(c *ConsoleController) {
		c.configManager = manager
	}
}

func WithCollector(collector sysinfo.Collector) ConsoleControllerOption {
	return func(c *ConsoleController) {
		c.collector = collector
	}
}

func WithDockerClient(client dockercli.Client) ConsoleControllerOption {
	return func(c *ConsoleController) {
		c.docker = client
	}
}

func WithLogger(logger logrus.FieldLogger) ConsoleControllerOption {
	return func(c *ConsoleController) {
		c.logger = logger
	}
}

// NewConsoleController creates a console controller.
func NewConsoleController(opts ...ConsoleControllerOption) *ConsoleController {
	c := &ConsoleController{}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.configManager == nil {
		c.configManager = appconfig.NewManager(appconfig.WithLogger(c.logger))
	}
	if c.collector == nil {
		c.collector = sysinfo.NewCollector(sysinfo.WithLogger(c.logger))
	}
	if c.docker == nil {
		c.docker = dockercli.New(dockercli.WithLogger(c.logger))
	}

	return c
}

func (c *ConsoleController) GetConfig(ctx context.Context) (appconfig.Config, error) {
	return c.configManager.GetConfig()
}

func (c *ConsoleController) SetConfig(ctx context.Context, config appconfig.Config) error {
	return c.configManager.SetConfig(config)
}

func (c *ConsoleController) GetServices(ctx context.Context) (appconfig.Services, error) {
	return c.configManager.GetServices()
}

func (c *ConsoleController) SetServices(ctx context.Context, services appconfig.Services) error {
	return c.configManager.SetServices(services)
}

func (c *ConsoleController) GetSystem(ctx context.Context) (sysinfo.Info, error) {
	return c.collector.Collect()
}

func (c *ConsoleController) ListContainers(ctx context.Context) ([]dockercli.Container, error) {
	return c.docker.ListContainers(ctx)
}

func (c *ConsoleController) ContainerAction(ctx context.Context, name, action string) error {
	switch action {
	case "start":
		return c.docker.StartContainer(ctx, name)
	case "stop":
		return c.docker.StopContainer(ctx, name)
	case "restart":
		return c.docker.RestartContainer(ctx, name)
	default:
		return types.NewBadRequestError(fmt.Errorf("unknown container action %q", action))
	}
}
