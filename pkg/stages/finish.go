package stages

import (
	"context"
	"net/http"
	"os"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/mediastackhq/mediastack/pkg/compose"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

// postInstallExecutor prepares the file shares declared in the storage
// configuration. Share export failures are warnings, the stack itself is
// already up at this point.
type postInstallExecutor struct {
	stage Stage
}

func (e *postInstallExecutor) Stage() Stage { return e.stage }

func (e *postInstallExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Running post-installation configuration")

	bundle := handle.Config()
	shares := bundle.Storage.Shares
	if len(shares) == 0 {
		handle.Log("No file shares configured")
		handle.SetProgress(100)
		return nil
	}

	for i, share := range shares {
		if share.Path == "" {
			handle.Log("Warning: share %s has no path, skipping", share.Name)
			continue
		}
		if err := os.MkdirAll(share.Path, 0755); err != nil {
			handle.Log("Warning: could not create share directory %s: %v", share.Path, err)
			continue
		}
		if err := os.Chown(share.Path, bundle.Config.PUID, bundle.Config.PGID); err != nil {
			handle.Log("Warning: could not set ownership of %s: %v", share.Path, err)
		}
		handle.Log("Prepared share %s at %s", share.Name, share.Path)
		handle.SetProgress(float64(i+1) / float64(len(shares)) * 100)
	}

	handle.SetProgress(100)
	return nil
}

// finalizationExecutor probes each service's web UI and reports
// reachability. Services that are still warming up are logged, not failed.
type finalizationExecutor struct {
	stage      Stage
	collector  sysinfo.Collector
	httpClient *retryablehttp.Client
}

func (e *finalizationExecutor) Stage() Stage { return e.stage }

func (e *finalizationExecutor) Execute(ctx context.Context, handle Handle) error {
	handle.SetProgress(10)
	handle.Log("Finalizing installation")

	host, err := e.collector.PrimaryIP()
	if err != nil {
		handle.Log("Warning: could not determine host address: %v", err)
		host = "localhost"
	}

	urls := compose.ServiceURLs(handle.Config().Services, host)
	if len(urls) == 0 {
		handle.Log("No web interfaces to verify")
		handle.SetProgress(100)
		return nil
	}

	i := 0
	for name, url := range urls {
		if e.probe(ctx, url) {
			handle.Log("%s is reachable at %s", name, url)
		} else {
			handle.Log("Warning: %s did not respond at %s yet", name, url)
		}
		i++
		handle.SetProgress(float64(i) / float64(len(urls)) * 100)
	}

	handle.Log("Installation finalized")
	handle.SetProgress(100)
	return nil
}

func (e *finalizationExecutor) probe(ctx context.Context, url string) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
