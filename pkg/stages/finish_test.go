package stages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

func TestPostInstall_NoShares(t *testing.T) {
	e := &postInstallExecutor{stage: Stage{ID: "post_install"}}
	handle := &fakeHandle{bundle: validBundle(t)}

	require.NoError(t, e.Execute(context.Background(), handle))
	assert.True(t, handle.hasLogContaining("No file shares configured"))
	assert.Equal(t, float64(100), handle.lastProgress())
}

func TestPostInstall_PreparesShares(t *testing.T) {
	bundle := validBundle(t)
	sharePath := t.TempDir() + "/exports/media"
	bundle.Storage.Shares = []appconfig.Share{
		{Name: "media", Path: sharePath},
		{Name: "broken"},
	}

	e := &postInstallExecutor{stage: Stage{ID: "post_install"}}
	handle := &fakeHandle{bundle: bundle}

	require.NoError(t, e.Execute(context.Background(), handle))
	assert.True(t, handle.hasLogContaining("Prepared share media"))
	assert.True(t, handle.hasLogContaining("share broken has no path"))
	assert.DirExists(t, sharePath)
}

func TestFinalization_ProbesServiceURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	collector := &sysinfo.MockCollector{}
	collector.On("PrimaryIP").Return(serverURL.Hostname(), nil)

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil

	bundle := validBundle(t)
	bundle.Services = appconfig.Services{
		MediaServers: map[string]bool{"jellyfin": true},
	}

	e := &finalizationExecutor{stage: Stage{ID: "finalization"}, collector: collector, httpClient: httpClient}
	handle := &fakeHandle{bundle: bundle}

	// jellyfin's catalog port will not match the test server, so the probe
	// fails and is reported as a warning, never as an error.
	require.NoError(t, e.Execute(context.Background(), handle))
	assert.True(t, handle.hasLogContaining("jellyfin"))
	assert.Equal(t, float64(100), handle.lastProgress())
}

func TestHandleWriter_SplitsLines(t *testing.T) {
	handle := &fakeHandle{}
	writer := newHandleWriter(handle)

	_, err := writer.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	_, err = writer.Write([]byte("half\n"))
	require.NoError(t, err)
	_, err = writer.Write([]byte("trailing"))
	require.NoError(t, err)
	writer.Flush()

	assert.Equal(t, []string{"first line", "second half", "trailing"}, handle.logs)
}
