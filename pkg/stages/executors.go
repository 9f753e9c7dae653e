package stages

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/compose"
	"github.com/mediastackhq/mediastack/pkg/dockercli"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

type deps struct {
	collector  sysinfo.Collector
	docker     dockercli.Client
	generator  compose.Generator
	configMgr  appconfig.Manager
	httpClient *retryablehttp.Client
	composeDir string
	logger     logrus.FieldLogger
}

type ExecutorOption func(*deps)

func WithCollector(collector sysinfo.Collector) ExecutorOption {
	return func(d *deps) {
		d.collector = collector
	}
}

func WithDockerClient(client dockercli.Client) ExecutorOption {
	return func(d *deps) {
		d.docker = client
	}
}

func WithComposeGenerator(generator compose.Generator) ExecutorOption {
	return func(d *deps) {
		d.generator = generator
	}
}

func WithConfigManager(manager appconfig.Manager) ExecutorOption {
	return func(d *deps) {
		d.configMgr = manager
	}
}

func WithHTTPClient(client *retryablehttp.Client) ExecutorOption {
	return func(d *deps) {
		d.httpClient = client
	}
}

// WithComposeDir sets the directory where compose files are written and read
// back during container creation.
func WithComposeDir(dir string) ExecutorOption {
	return func(d *deps) {
		d.composeDir = dir
	}
}

func WithLogger(logger logrus.FieldLogger) ExecutorOption {
	return func(d *deps) {
		d.logger = logger
	}
}

// NewExecutors builds the executor for every stage of the default registry,
// in registry order.
func NewExecutors(opts ...ExecutorOption) []Executor {
	d := &deps{}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = logrus.New()
	}
	if d.composeDir == "" {
		d.composeDir = filepath.Join(os.TempDir(), "mediastack-compose")
	}
	if d.collector == nil {
		d.collector = sysinfo.NewCollector(sysinfo.WithLogger(d.logger))
	}
	if d.docker == nil {
		d.docker = dockercli.New(dockercli.WithLogger(d.logger))
	}
	if d.generator == nil {
		d.generator = compose.NewGenerator(
			compose.WithOutputDir(d.composeDir),
			compose.WithLogger(d.logger),
		)
	}
	if d.configMgr == nil {
		d.configMgr = appconfig.NewManager(appconfig.WithLogger(d.logger))
	}
	if d.httpClient == nil {
		d.httpClient = retryablehttp.NewClient()
		d.httpClient.RetryMax = 2
		d.httpClient.Logger = nil
	}

	registry := DefaultRegistry()
	stage := func(id string) Stage {
		s, _ := registry.Get(id)
		return s
	}

	return []Executor{
		&preCheckExecutor{stage: stage("pre_check"), collector: d.collector},
		&configSetupExecutor{stage: stage("config_setup"), configMgr: d.configMgr},
		&networkSetupExecutor{stage: stage("network_setup")},
		&storageSetupExecutor{stage: stage("storage_setup")},
		&dependencyInstallExecutor{stage: stage("dependency_install")},
		&dockerSetupExecutor{stage: stage("docker_setup"), docker: d.docker},
		&composeGenerationExecutor{stage: stage("compose_generation"), generator: d.generator, configMgr: d.configMgr},
		&containerCreationExecutor{stage: stage("container_creation"), docker: d.docker, composeDir: d.composeDir},
		&serviceStartExecutor{stage: stage("service_start"), docker: d.docker},
		&postInstallExecutor{stage: stage("post_install")},
		&finalizationExecutor{stage: stage("finalization"), collector: d.collector, httpClient: d.httpClient},
	}
}

// handleWriter adapts a Handle into an io.Writer so command output can be
// streamed into the session log line by line.
type handleWriter struct {
	handle Handle
	buf    bytes.Buffer
}

var _ io.Writer = (*handleWriter)(nil)

func newHandleWriter(handle Handle) *handleWriter {
	return &handleWriter{handle: handle}
}

func (w *handleWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it for the next write.
			w.buf.WriteString(line)
			break
		}
		if trimmed := trimLine(line); trimmed != "" {
			w.handle.Log("%s", trimmed)
		}
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *handleWriter) Flush() {
	if trimmed := trimLine(w.buf.String()); trimmed != "" {
		w.handle.Log("%s", trimmed)
	}
	w.buf.Reset()
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
