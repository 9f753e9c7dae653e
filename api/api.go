// Package api assembles the HTTP surface of the daemon: controllers,
// handlers and the push channel endpoint.
package api

import (
	"fmt"

	"github.com/sirupsen/logrus"

	consolectl "github.com/mediastackhq/mediastack/api/controllers/console"
	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/pkg/broadcast"
	"github.com/mediastackhq/mediastack/api/internal/handlers/console"
	"github.com/mediastackhq/mediastack/api/internal/handlers/health"
	"github.com/mediastackhq/mediastack/api/internal/handlers/install"
	"github.com/mediastackhq/mediastack/api/internal/handlers/ws"
	appsession "github.com/mediastackhq/mediastack/api/pkg/managers/session"
	"github.com/mediastackhq/mediastack/api/pkg/logger"
)

type API struct {
	logger      logrus.FieldLogger
	broadcaster broadcast.Broadcaster

	installController installctl.Controller
	consoleController consolectl.Controller

	handlers handlers
}

type handlers struct {
	health  *health.Handler
	install *install.Handler
	console *console.Handler
	ws      *ws.Handler
}

type APIOption func(*API)

func WithLogger(logger logrus.FieldLogger) APIOption {
	return func(a *API) {
		a.logger = logger
	}
}

func WithBroadcaster(broadcaster broadcast.Broadcaster) APIOption {
	return func(a *API) {
		a.broadcaster = broadcaster
	}
}

func WithInstallController(controller installctl.Controller) APIOption {
	return func(a *API) {
		a.installController = controller
	}
}

func WithConsoleController(controller consolectl.Controller) APIOption {
	return func(a *API) {
		a.consoleController = controller
	}
}

// New assembles the API with its controllers and handlers.
func New(opts ...APIOption) (*API, error) {
	a := &API{}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.NewDiscardLogger()
	}
	if a.broadcaster == nil {
		a.broadcaster = broadcast.NewBroadcaster(broadcast.WithLogger(a.logger))
	}
	if a.installController == nil {
		sessionManager := appsession.NewManager(
			appsession.WithBroadcaster(a.broadcaster),
			appsession.WithLogger(a.logger),
		)
		controller, err := installctl.NewInstallController(
			installctl.WithSessionManager(sessionManager),
			installctl.WithLogger(a.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create install controller: %w", err)
		}
		a.installController = controller
	}
	if a.consoleController == nil {
		a.consoleController = consolectl.NewConsoleController(consolectl.WithLogger(a.logger))
	}

	var err error
	a.handlers.health, err = health.New(health.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("create health handler: %w", err)
	}
	a.handlers.install, err = install.New(
		install.WithController(a.installController),
		install.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create install handler: %w", err)
	}
	a.handlers.console, err = console.New(
		console.WithController(a.consoleController),
		console.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create console handler: %w", err)
	}
	a.handlers.ws, err = ws.New(
		ws.WithController(a.installController),
		ws.WithBroadcaster(a.broadcaster),
		ws.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create websocket handler: %w", err)
	}

	return a, nil
}
