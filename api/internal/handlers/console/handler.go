// Package console exposes configuration, host and container endpoints.
package console

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	consolectl "github.com/mediastackhq/mediastack/api/controllers/console"
	"github.com/mediastackhq/mediastack/api/internal/handlers/utils"
	"github.com/mediastackhq/mediastack/api/pkg/logger"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
)

type Handler struct {
	controller consolectl.Controller
	logger     logrus.FieldLogger
}

type Option func(*Handler)

func WithController(controller consolectl.Controller) Option {
	return func(h *Handler) {
		h.controller = controller
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.NewDiscardLogger()
	}
	if h.controller == nil {
		h.controller = consolectl.NewConsoleController(consolectl.WithLogger(h.logger))
	}

	return h, nil
}

// GetConfig returns the persisted base configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.controller.GetConfig(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to get config")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, config, h.logger)
}

// PostConfig replaces the persisted base configuration.
func (h *Handler) PostConfig(w http.ResponseWriter, r *http.Request) {
	var config appconfig.Config
	if err := utils.BindJSON(w, r, &config, h.logger); err != nil {
		return
	}
	if err := h.controller.SetConfig(r.Context(), config); err != nil {
		utils.LogError(r, err, h.logger, "failed to set config")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, config, h.logger)
}

// GetServices returns the current service selection.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.controller.GetServices(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to get services")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, services, h.logger)
}

// PostServices replaces the service selection.
func (h *Handler) PostServices(w http.ResponseWriter, r *http.Request) {
	var services appconfig.Services
	if err := utils.BindJSON(w, r, &services, h.logger); err != nil {
		return
	}
	if err := h.controller.SetServices(r.Context(), services); err != nil {
		utils.LogError(r, err, h.logger, "failed to set services")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, services, h.logger)
}

// GetSystem returns the host information report.
func (h *Handler) GetSystem(w http.ResponseWriter, r *http.Request) {
	info, err := h.controller.GetSystem(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to collect system info")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, info, h.logger)
}

// GetContainers lists all containers known to the runtime.
func (h *Handler) GetContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.controller.ListContainers(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to list containers")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, containers, h.logger)
}

// PostContainerAction starts, stops or restarts a single container.
func (h *Handler) PostContainerAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.controller.ContainerAction(r.Context(), vars["name"], vars["action"]); err != nil {
		utils.LogError(r, err, h.logger, "container action failed")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.NoContent(w)
}
