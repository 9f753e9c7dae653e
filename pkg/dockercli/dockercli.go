// Package dockercli drives the container runtime through the docker binary.
// The daemon targets single-board hosts where the engine may not even be
// installed yet, so everything goes through the CLI rather than the engine
// API socket.
package dockercli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mediastackhq/mediastack/pkg/helpers"
	"github.com/sirupsen/logrus"
)

const installScriptURL = "https://get.docker.com"

var _ Client = (*client)(nil)

// Container is one entry from the runtime's container listing.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status"`
	Ports  string `json:"ports"`
}

// Client is the control surface over the container runtime.
type Client interface {
	// Installed reports whether the docker binary is available on the host.
	Installed(ctx context.Context) bool
	// EngineActive reports whether the docker systemd unit is active.
	EngineActive(ctx context.Context) (bool, error)
	// InstallEngine installs the engine using the upstream convenience
	// script, streaming script output to logs.
	InstallEngine(ctx context.Context, logs io.Writer) error
	// StartEngine activates and enables the docker systemd unit.
	StartEngine(ctx context.Context) error
	// ComposeUp creates and starts the stack described by the compose file.
	ComposeUp(ctx context.Context, composeFile, envFile string, logs io.Writer) error
	// ListContainers returns all containers known to the runtime.
	ListContainers(ctx context.Context) ([]Container, error)
	StartContainer(ctx context.Context, name string) error
	StopContainer(ctx context.Context, name string) error
	RestartContainer(ctx context.Context, name string) error
}

type client struct {
	logger logrus.FieldLogger
}

type ClientOption func(*client)

func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *client) {
		c.logger = logger
	}
}

// New creates a docker CLI client.
func New(opts ...ClientOption) Client {
	c := &client{}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logrus.New()
	}

	return c
}

func (c *client) Installed(ctx context.Context) bool {
	_, err := helpers.RunCommand(ctx, "docker", "--version")
	return err == nil
}

func (c *client) EngineActive(ctx context.Context) (bool, error) {
	out, err := helpers.RunCommand(ctx, "systemctl", "is-active", "docker")
	if err != nil {
		// is-active exits non-zero for inactive units, which is an answer,
		// not a failure
		return false, nil
	}
	return strings.TrimSpace(out) == "active", nil
}

func (c *client) InstallEngine(ctx context.Context, logs io.Writer) error {
	script, err := os.CreateTemp("", "get-docker-*.sh")
	if err != nil {
		return fmt.Errorf("create install script: %w", err)
	}
	defer os.Remove(script.Name())
	defer script.Close()

	if err := helpers.RunCommandWithOptions(ctx, helpers.RunCommandOptions{Writer: script}, "curl", "-fsSL", installScriptURL); err != nil {
		return fmt.Errorf("download install script: %w", err)
	}
	if err := script.Close(); err != nil {
		return fmt.Errorf("close install script: %w", err)
	}

	c.logger.Info("running docker install script")
	if err := helpers.RunCommandWithOptions(ctx, helpers.RunCommandOptions{Writer: logs, ErrWriter: logs}, "sh", script.Name()); err != nil {
		return fmt.Errorf("run install script: %w", err)
	}
	return nil
}

func (c *client) StartEngine(ctx context.Context) error {
	if _, err := helpers.RunCommand(ctx, "systemctl", "enable", "docker"); err != nil {
		return fmt.Errorf("enable docker unit: %w", err)
	}
	if _, err := helpers.RunCommand(ctx, "systemctl", "start", "docker"); err != nil {
		return fmt.Errorf("start docker unit: %w", err)
	}
	return nil
}

func (c *client) ComposeUp(ctx context.Context, composeFile, envFile string, logs io.Writer) error {
	args := []string{"compose", "-f", composeFile}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	args = append(args, "up", "-d")
	opts := helpers.RunCommandOptions{Writer: logs, ErrWriter: logs}
	if err := helpers.RunCommandWithOptions(ctx, opts, "docker", args...); err != nil {
		return fmt.Errorf("compose up: %w", err)
	}
	return nil
}

// psEntry matches the docker ps --format json output schema.
type psEntry struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	State  string `json:"State"`
	Status string `json:"Status"`
	Ports  string `json:"Ports"`
}

func (c *client) ListContainers(ctx context.Context) ([]Container, error) {
	out, err := helpers.RunCommand(ctx, "docker", "ps", "-a", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	// one JSON object per line
	var containers []Container
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry psEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			c.logger.WithError(err).Debugf("skipping malformed ps entry: %s", line)
			continue
		}
		containers = append(containers, Container{
			ID:     entry.ID,
			Name:   entry.Names,
			Image:  entry.Image,
			State:  entry.State,
			Status: entry.Status,
			Ports:  entry.Ports,
		})
	}
	return containers, nil
}

func (c *client) StartContainer(ctx context.Context, name string) error {
	if _, err := helpers.RunCommand(ctx, "docker", "start", name); err != nil {
		return fmt.Errorf("start container %s: %w", name, err)
	}
	return nil
}

func (c *client) StopContainer(ctx context.Context, name string) error {
	if _, err := helpers.RunCommand(ctx, "docker", "stop", name); err != nil {
		return fmt.Errorf("stop container %s: %w", name, err)
	}
	return nil
}

func (c *client) RestartContainer(ctx context.Context, name string) error {
	if _, err := helpers.RunCommand(ctx, "docker", "restart", name); err != nil {
		return fmt.Errorf("restart container %s: %w", name, err)
	}
	return nil
}
