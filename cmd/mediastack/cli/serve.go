package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mediastackhq/mediastack/api"
	consolectl "github.com/mediastackhq/mediastack/api/controllers/console"
	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/pkg/broadcast"
	appsession "github.com/mediastackhq/mediastack/api/pkg/managers/session"
	apilogger "github.com/mediastackhq/mediastack/api/pkg/logger"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/dockercli"
	"github.com/mediastackhq/mediastack/pkg/logging"
	"github.com/mediastackhq/mediastack/pkg/stages"
	"github.com/mediastackhq/mediastack/pkg/sysinfo"
)

// ServeCmd runs the HTTP API and push channel daemon.
func ServeCmd(ctx context.Context, name string, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the provisioning API server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			logging.SetupLogging(v.GetString("log-dir"))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	cmd.Flags().Int("port", 8080, "Port to bind to")
	cmd.Flags().String("data-dir", "", "Directory for configuration state (defaults to the user config dir)")
	cmd.Flags().String("log-dir", filepath.Join(os.TempDir(), "mediastack", "logs"), "Directory for log files")

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	apiLog, err := apilogger.NewLogger(v.GetString("log-dir"))
	if err != nil {
		logrus.Warnf("unable to setup api logging: %v", err)
		apiLog = logrus.New()
	}

	a, err := buildAPI(apiLog, v.GetString("data-dir"))
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	a.RegisterRoutes(router.PathPrefix("/api").Subrouter())

	addr := net.JoinHostPort(v.GetString("host"), strconv.Itoa(v.GetInt("port")))
	server := &http.Server{Addr: addr, Handler: router}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Server gracefully stopped")
	return nil
}

// buildAPI wires the controllers so that the install and console surfaces
// share one config manager, collector, and docker client.
func buildAPI(log logrus.FieldLogger, dataDir string) (*api.API, error) {
	configOpts := []appconfig.ManagerOption{appconfig.WithLogger(log)}
	if dataDir != "" {
		configOpts = append(configOpts, appconfig.WithConfigDir(dataDir))
	}
	configManager := appconfig.NewManager(configOpts...)

	collector := sysinfo.NewCollector(sysinfo.WithLogger(log))
	docker := dockercli.New(dockercli.WithLogger(log))

	broadcaster := broadcast.NewBroadcaster(broadcast.WithLogger(log))
	sessionManager := appsession.NewManager(
		appsession.WithBroadcaster(broadcaster),
		appsession.WithLogger(log),
	)

	executors := stages.NewExecutors(
		stages.WithCollector(collector),
		stages.WithDockerClient(docker),
		stages.WithConfigManager(configManager),
		stages.WithLogger(log),
	)

	installController, err := installctl.NewInstallController(
		installctl.WithSessionManager(sessionManager),
		installctl.WithExecutors(executors),
		installctl.WithCollector(collector),
		installctl.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	consoleController := consolectl.NewConsoleController(
		consolectl.WithConfigManager(configManager),
		consolectl.WithCollector(collector),
		consolectl.WithDockerClient(docker),
		consolectl.WithLogger(log),
	)

	return api.New(
		api.WithLogger(log),
		api.WithBroadcaster(broadcaster),
		api.WithInstallController(installController),
		api.WithConsoleController(consoleController),
	)
}
