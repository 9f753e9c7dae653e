package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

// configSetupExecutor validates the base configuration and persists it.
type configSetupExecutor struct {
	stage     Stage
	configMgr appconfig.Manager
}

func (e *configSetupExecutor) Stage() Stage { return e.stage }

func (e *configSetupExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Setting up basic configuration")

	cfg := handle.Config().Config
	if err := validateConfig(cfg); err != nil {
		return err
	}

	handle.SetProgress(60)
	if err := e.configMgr.SetConfig(cfg); err != nil {
		return RecoverableErr(fmt.Errorf("persist configuration: %w", err))
	}

	handle.Log("Configuration saved: timezone=%s puid=%d pgid=%d", cfg.Timezone, cfg.PUID, cfg.PGID)
	handle.SetProgress(100)
	return nil
}

func validateConfig(cfg appconfig.Config) error {
	if cfg.PUID < 0 || cfg.PGID < 0 {
		return fmt.Errorf("puid and pgid must be non-negative")
	}
	if cfg.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", cfg.Timezone)
	}
	for field, value := range map[string]string{
		"media_dir":     cfg.MediaDir,
		"downloads_dir": cfg.DownloadsDir,
		"docker_dir":    cfg.DockerDir,
	} {
		if value == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	return nil
}

// networkSetupExecutor validates the optional network add-ons. The actual
// containers are created later from the compose project.
type networkSetupExecutor struct {
	stage Stage
}

func (e *networkSetupExecutor) Stage() Stage { return e.stage }

func (e *networkSetupExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Configuring network")

	network := handle.Config().Network

	if vpn := network.VPN; vpn.Enabled {
		if vpn.Username == "" || vpn.Password == "" {
			return fmt.Errorf("vpn is enabled but credentials are missing")
		}
		if vpn.Provider == "" {
			return fmt.Errorf("vpn is enabled but no provider is set")
		}
		handle.Log("VPN enabled: provider=%s region=%s", vpn.Provider, vpn.Region)
	} else {
		handle.Log("VPN disabled")
	}
	handle.SetProgress(60)

	if ts := network.Tailscale; ts.Enabled {
		if ts.AuthKey == "" {
			handle.Log("Warning: tailscale is enabled without an auth key, interactive login will be required")
		} else {
			handle.Log("Tailscale enabled")
		}
	}

	handle.SetProgress(100)
	return nil
}

var mediaSubdirs = []string{"Movies", "TVShows", "Music", "Books", "Photos"}

var downloadSubdirs = []string{"complete", "incomplete", "watch"}

// storageSetupExecutor creates the directory tree the services mount.
type storageSetupExecutor struct {
	stage Stage
}

func (e *storageSetupExecutor) Stage() Stage { return e.stage }

func (e *storageSetupExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(5)
	cfg := handle.Config().Config

	handle.Log("Creating media subdirectories in %s", cfg.MediaDir)
	dirs := []string{cfg.DockerDir}
	for _, sub := range mediaSubdirs {
		dirs = append(dirs, filepath.Join(cfg.MediaDir, sub))
	}
	for _, sub := range downloadSubdirs {
		dirs = append(dirs, filepath.Join(cfg.DownloadsDir, sub))
	}

	for i, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return RecoverableErr(fmt.Errorf("create directory %s: %w", dir, err))
		}
		if err := os.Chown(dir, cfg.PUID, cfg.PGID); err != nil {
			handle.Log("Warning: could not set ownership of %s: %v", dir, err)
		}
		handle.SetProgress(float64(i+1) / float64(len(dirs)) * 100)
	}

	handle.Log("Storage directories ready")
	return nil
}
