package compose

import (
	"fmt"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

// ServiceInfo describes one deployable service of the stack.
type ServiceInfo struct {
	Name        string
	Description string
	Image       string
	// Port is the web UI port the service listens on inside the container.
	// Zero means the service has no web UI.
	Port int
	// NeedsVPN marks download clients that must be routed through the VPN
	// container when one is enabled.
	NeedsVPN bool
}

var catalog = map[string]ServiceInfo{
	"sonarr":       {Name: "sonarr", Description: "TV Series Management", Image: "linuxserver/sonarr:latest", Port: 8989},
	"radarr":       {Name: "radarr", Description: "Movie Management", Image: "linuxserver/radarr:latest", Port: 7878},
	"lidarr":       {Name: "lidarr", Description: "Music Management", Image: "linuxserver/lidarr:latest", Port: 8686},
	"readarr":      {Name: "readarr", Description: "Book Management", Image: "linuxserver/readarr:latest", Port: 8787},
	"prowlarr":     {Name: "prowlarr", Description: "Indexer Management", Image: "linuxserver/prowlarr:latest", Port: 9696},
	"bazarr":       {Name: "bazarr", Description: "Subtitle Management", Image: "linuxserver/bazarr:latest", Port: 6767},
	"transmission": {Name: "transmission", Description: "Torrent Client", Image: "linuxserver/transmission:latest", Port: 9091, NeedsVPN: true},
	"qbittorrent":  {Name: "qbittorrent", Description: "Torrent Client", Image: "linuxserver/qbittorrent:latest", Port: 8080, NeedsVPN: true},
	"nzbget":       {Name: "nzbget", Description: "Usenet Client", Image: "linuxserver/nzbget:latest", Port: 6789, NeedsVPN: true},
	"sabnzbd":      {Name: "sabnzbd", Description: "Usenet Client", Image: "linuxserver/sabnzbd:latest", Port: 8080, NeedsVPN: true},
	"jellyfin":     {Name: "jellyfin", Description: "Media Server", Image: "linuxserver/jellyfin:latest", Port: 8096},
	"plex":         {Name: "plex", Description: "Media Server", Image: "linuxserver/plex:latest", Port: 32400},
	"emby":         {Name: "emby", Description: "Media Server", Image: "linuxserver/emby:latest", Port: 8096},
	"heimdall":     {Name: "heimdall", Description: "Application Dashboard", Image: "linuxserver/heimdall:latest", Port: 80},
	"overseerr":    {Name: "overseerr", Description: "Media Requests", Image: "linuxserver/overseerr:latest", Port: 5055},
	"tautulli":     {Name: "tautulli", Description: "Media Server Stats", Image: "linuxserver/tautulli:latest", Port: 8181},
	"portainer":    {Name: "portainer", Description: "Container Management", Image: "portainer/portainer-ce:latest", Port: 9000},
	"gluetun":      {Name: "gluetun", Description: "VPN Client", Image: "qmcgaw/gluetun:latest"},
	"tailscale":    {Name: "tailscale", Description: "Secure Network", Image: "tailscale/tailscale:latest"},
}

// Lookup returns the catalog entry for a service name.
func Lookup(name string) (ServiceInfo, bool) {
	info, ok := catalog[name]
	return info, ok
}

// ServiceURLs maps each enabled service with a web UI to its URL on the
// given host.
func ServiceURLs(services appconfig.Services, host string) map[string]string {
	urls := map[string]string{}
	for _, name := range services.Enabled() {
		info, ok := catalog[name]
		if !ok || info.Port == 0 {
			continue
		}
		urls[name] = fmt.Sprintf("http://%s:%d", host, info.Port)
	}
	return urls
}
