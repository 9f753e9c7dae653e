// Package appconfig persists the user-facing configuration of the media
// stack: runtime identity, directory layout, network add-ons, and the
// per-service enable flags the compose generator consumes.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	configFilename   = "config.yaml"
	servicesFilename = "services.yaml"
)

// Config holds the base configuration of the stack.
type Config struct {
	PUID         int    `yaml:"puid" json:"puid"`
	PGID         int    `yaml:"pgid" json:"pgid"`
	Timezone     string `yaml:"timezone" json:"timezone"`
	MediaDir     string `yaml:"media_dir" json:"media_dir"`
	DownloadsDir string `yaml:"downloads_dir" json:"downloads_dir"`
	DockerDir    string `yaml:"docker_dir" json:"docker_dir"`
}

// VPN configures the VPN companion container.
type VPN struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider" json:"provider"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Region   string `yaml:"region" json:"region"`
}

// Tailscale configures the tailscale mesh add-on.
type Tailscale struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	AuthKey string `yaml:"auth_key" json:"auth_key"`
}

// Network groups the optional network add-ons.
type Network struct {
	VPN       VPN       `yaml:"vpn" json:"vpn"`
	Tailscale Tailscale `yaml:"tailscale" json:"tailscale"`
}

// Share describes a single file share exported after installation.
type Share struct {
	Name     string `yaml:"name" json:"name"`
	Path     string `yaml:"path" json:"path"`
	Public   bool   `yaml:"public" json:"public"`
	ReadOnly bool   `yaml:"read_only" json:"read_only"`
}

// Storage groups the directory and file sharing configuration collected by
// the installer.
type Storage struct {
	MediaDirectory     string  `yaml:"media_directory" json:"media_directory"`
	DownloadsDirectory string  `yaml:"downloads_directory" json:"downloads_directory"`
	Shares             []Share `yaml:"shares" json:"shares"`
}

// Services maps service names to their enable flag, grouped by category.
type Services struct {
	ArrApps         map[string]bool `yaml:"arr_apps" json:"arr_apps"`
	DownloadClients map[string]bool `yaml:"download_clients" json:"download_clients"`
	MediaServers    map[string]bool `yaml:"media_servers" json:"media_servers"`
	Utilities       map[string]bool `yaml:"utilities" json:"utilities"`
}

// Enabled returns the names of all enabled services across categories.
func (s Services) Enabled() []string {
	var names []string
	for _, category := range []map[string]bool{s.ArrApps, s.DownloadClients, s.MediaServers, s.Utilities} {
		for name, enabled := range category {
			if enabled {
				names = append(names, name)
			}
		}
	}
	return names
}

// Bundle is the full configuration collected for one provisioning run.
type Bundle struct {
	Config   Config
	Network  Network
	Storage  Storage
	Services Services
}

// DefaultConfig returns the configuration used when none has been saved yet.
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/home/pi"
	}
	return Config{
		PUID:         1000,
		PGID:         1000,
		Timezone:     "UTC",
		MediaDir:     "/mnt/media",
		DownloadsDir: "/mnt/downloads",
		DockerDir:    filepath.Join(homeDir, "docker"),
	}
}

// DefaultServices returns the stock service selection.
func DefaultServices() Services {
	return Services{
		ArrApps: map[string]bool{
			"sonarr":   true,
			"radarr":   true,
			"prowlarr": true,
			"lidarr":   false,
			"bazarr":   false,
		},
		DownloadClients: map[string]bool{
			"transmission": true,
			"qbittorrent":  false,
			"nzbget":       false,
			"sabnzbd":      false,
		},
		MediaServers: map[string]bool{
			"jellyfin": true,
			"plex":     false,
			"emby":     false,
		},
		Utilities: map[string]bool{
			"heimdall":  false,
			"overseerr": false,
			"tautulli":  false,
			"portainer": true,
		},
	}
}

var _ Manager = (*manager)(nil)

// Manager provides read/write access to the persisted configuration.
type Manager interface {
	GetConfig() (Config, error)
	SetConfig(config Config) error
	GetServices() (Services, error)
	SetServices(services Services) error
}

type manager struct {
	configDir string
	logger    logrus.FieldLogger
}

type ManagerOption func(*manager)

func WithConfigDir(dir string) ManagerOption {
	return func(m *manager) {
		m.configDir = dir
	}
}

func WithLogger(logger logrus.FieldLogger) ManagerOption {
	return func(m *manager) {
		m.logger = logger
	}
}

// NewManager creates a configuration manager rooted at the given directory.
func NewManager(opts ...ManagerOption) Manager {
	m := &manager{}

	for _, opt := range opts {
		opt(m)
	}

	if m.configDir == "" {
		m.configDir = defaultConfigDir()
	}
	if m.logger == nil {
		m.logger = logrus.New()
	}

	return m
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mediastack")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/"
	}
	return filepath.Join(homeDir, ".config", "mediastack")
}

func (m *manager) GetConfig() (Config, error) {
	config := DefaultConfig()
	if err := m.load(configFilename, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (m *manager) SetConfig(config Config) error {
	return m.save(configFilename, config)
}

func (m *manager) GetServices() (Services, error) {
	services := DefaultServices()
	if err := m.load(servicesFilename, &services); err != nil {
		return Services{}, err
	}
	return services, nil
}

func (m *manager) SetServices(services Services) error {
	return m.save(servicesFilename, services)
}

// load overlays the file contents onto the defaults already present in v. A
// missing file is not an error; defaults are returned as-is.
func (m *manager) load(filename string, v any) error {
	path := filepath.Join(m.configDir, filename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

func (m *manager) save(filename string, v any) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}
	path := filepath.Join(m.configDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	m.logger.Debugf("wrote %s", path)
	return nil
}
