// Package compose renders the docker compose project for the selected
// services: one docker-compose.yml plus the .env file it references.
package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

const (
	ComposeFilename = "docker-compose.yml"
	EnvFilename     = ".env"

	networkName = "container_network"
)

var _ Generator = (*generator)(nil)

// Generator renders compose projects from a configuration bundle.
type Generator interface {
	// Generate writes the compose and env files and returns their paths.
	Generate(bundle appconfig.Bundle) (composePath string, envPath string, err error)
}

type generator struct {
	outputDir string
	logger    logrus.FieldLogger
}

type GeneratorOption func(*generator)

func WithOutputDir(dir string) GeneratorOption {
	return func(g *generator) {
		g.outputDir = dir
	}
}

func WithLogger(logger logrus.FieldLogger) GeneratorOption {
	return func(g *generator) {
		g.logger = logger
	}
}

// NewGenerator creates a compose generator writing into the given directory.
func NewGenerator(opts ...GeneratorOption) Generator {
	g := &generator{}

	for _, opt := range opts {
		opt(g)
	}

	if g.outputDir == "" {
		g.outputDir = filepath.Join(os.TempDir(), "mediastack-compose")
	}
	if g.logger == nil {
		g.logger = logrus.New()
	}

	return g
}

// composeService mirrors the compose v2 service schema for the fields we
// emit. Omitted fields marshal away so each service block stays minimal.
type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	NetworkMode   string   `yaml:"network_mode,omitempty"`
	Networks      []string `yaml:"networks,omitempty"`
	CapAdd        []string `yaml:"cap_add,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	Restart       string   `yaml:"restart"`
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
	Networks map[string]struct {
		Driver string `yaml:"driver"`
	} `yaml:"networks"`
}

func (g *generator) Generate(bundle appconfig.Bundle) (string, string, error) {
	doc := composeFile{
		Services: map[string]composeService{},
		Networks: map[string]struct {
			Driver string `yaml:"driver"`
		}{
			networkName: {Driver: "bridge"},
		},
	}

	vpnEnabled := bundle.Network.VPN.Enabled

	enabled := bundle.Services.Enabled()
	sort.Strings(enabled)

	if vpnEnabled {
		doc.Services["gluetun"] = gluetunService(bundle)
	}
	if bundle.Network.Tailscale.Enabled {
		doc.Services["tailscale"] = tailscaleService()
	}

	for _, name := range enabled {
		info, ok := Lookup(name)
		if !ok {
			return "", "", fmt.Errorf("unknown service %q", name)
		}
		doc.Services[name] = stackService(info, vpnEnabled)
	}

	// Download clients behind the VPN publish their ports on gluetun.
	if vpnEnabled {
		gluetun := doc.Services["gluetun"]
		for _, name := range enabled {
			info, _ := Lookup(name)
			if info.NeedsVPN && info.Port != 0 {
				gluetun.Ports = append(gluetun.Ports, fmt.Sprintf("%d:%d", info.Port, info.Port))
			}
		}
		doc.Services["gluetun"] = gluetun
	}

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	composeData, err := yaml.Marshal(doc)
	if err != nil {
		return "", "", fmt.Errorf("marshal compose file: %w", err)
	}
	composePath := filepath.Join(g.outputDir, ComposeFilename)
	if err := os.WriteFile(composePath, composeData, 0644); err != nil {
		return "", "", fmt.Errorf("write compose file: %w", err)
	}

	envPath := filepath.Join(g.outputDir, EnvFilename)
	if err := os.WriteFile(envPath, []byte(renderEnv(bundle)), 0644); err != nil {
		return "", "", fmt.Errorf("write env file: %w", err)
	}

	g.logger.WithField("services", len(doc.Services)).Debugf("wrote %s", composePath)
	return composePath, envPath, nil
}

func stackService(info ServiceInfo, vpnEnabled bool) composeService {
	svc := composeService{
		Image:         info.Image,
		ContainerName: info.Name,
		Environment: []string{
			"PUID=${PUID}",
			"PGID=${PGID}",
			"TZ=${TIMEZONE}",
		},
		Volumes: []string{
			fmt.Sprintf("${DOCKER_DIR}/%s:/config", info.Name),
		},
		Restart: "unless-stopped",
	}

	switch {
	case info.NeedsVPN && vpnEnabled:
		// Shares gluetun's network namespace, so no ports or networks of
		// its own.
		svc.NetworkMode = "service:gluetun"
	default:
		svc.Networks = []string{networkName}
		if info.Port != 0 {
			svc.Ports = []string{fmt.Sprintf("%d:%d", info.Port, info.Port)}
		}
	}

	if info.NeedsVPN {
		svc.Volumes = append(svc.Volumes, "${DOWNLOADS_DIR}:/downloads", "${WATCH_DIR}:/watch")
	} else {
		svc.Volumes = append(svc.Volumes, "${MEDIA_DIR}:/media", "${DOWNLOADS_DIR}:/downloads")
	}

	return svc
}

func gluetunService(bundle appconfig.Bundle) composeService {
	return composeService{
		Image:         catalog["gluetun"].Image,
		ContainerName: "gluetun",
		Networks:      []string{networkName},
		CapAdd:        []string{"NET_ADMIN"},
		Environment: []string{
			"VPN_SERVICE_PROVIDER=${VPN_SERVICE_PROVIDER}",
			"OPENVPN_USER=${OPENVPN_USER}",
			"OPENVPN_PASSWORD=${OPENVPN_PASSWORD}",
			"SERVER_REGIONS=${SERVER_REGIONS}",
			"TZ=${TIMEZONE}",
		},
		Volumes: []string{"${DOCKER_DIR}/gluetun:/gluetun"},
		Restart: "unless-stopped",
	}
}

func tailscaleService() composeService {
	return composeService{
		Image:         catalog["tailscale"].Image,
		ContainerName: "tailscale",
		NetworkMode:   "host",
		CapAdd:        []string{"NET_ADMIN"},
		Environment: []string{
			"TS_AUTHKEY=${TAILSCALE_AUTH_KEY}",
			"TS_STATE_DIR=/var/lib/tailscale",
		},
		Volumes: []string{"${DOCKER_DIR}/tailscale:/var/lib/tailscale"},
		Restart: "unless-stopped",
	}
}

func renderEnv(bundle appconfig.Bundle) string {
	cfg := bundle.Config

	var sb strings.Builder
	sb.WriteString("# Generated by mediastack\n")
	sb.WriteString("# Base Configuration\n")
	fmt.Fprintf(&sb, "PUID=%d\n", cfg.PUID)
	fmt.Fprintf(&sb, "PGID=%d\n", cfg.PGID)
	fmt.Fprintf(&sb, "TIMEZONE=%s\n", cfg.Timezone)
	sb.WriteString("IMAGE_RELEASE=latest\n")
	fmt.Fprintf(&sb, "DOCKER_DIR=%s\n", cfg.DockerDir)
	sb.WriteString("\n# Media and Download Directories\n")
	fmt.Fprintf(&sb, "MEDIA_DIR=%s\n", cfg.MediaDir)
	fmt.Fprintf(&sb, "DOWNLOADS_DIR=%s\n", cfg.DownloadsDir)
	fmt.Fprintf(&sb, "WATCH_DIR=%s\n", filepath.Join(cfg.DownloadsDir, "watch"))

	if vpn := bundle.Network.VPN; vpn.Enabled {
		sb.WriteString("\n# VPN Configuration\n")
		sb.WriteString("VPN_CONTAINER=gluetun\n")
		fmt.Fprintf(&sb, "VPN_SERVICE_PROVIDER=%s\n", vpn.Provider)
		fmt.Fprintf(&sb, "OPENVPN_USER=%s\n", vpn.Username)
		fmt.Fprintf(&sb, "OPENVPN_PASSWORD=%s\n", vpn.Password)
		fmt.Fprintf(&sb, "SERVER_REGIONS=%s\n", vpn.Region)
	}

	if ts := bundle.Network.Tailscale; ts.Enabled {
		sb.WriteString("\n# Tailscale\n")
		fmt.Fprintf(&sb, "TAILSCALE_AUTH_KEY=%s\n", ts.AuthKey)
	}

	sb.WriteString("\n# Network Configuration\n")
	fmt.Fprintf(&sb, "CONTAINER_NETWORK=%s\n", networkName)

	return sb.String()
}
