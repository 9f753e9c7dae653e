// Package install exposes the provisioning run over HTTP: status queries
// and the run trigger.
package install

import (
	"net/http"

	"github.com/sirupsen/logrus"

	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/internal/handlers/utils"
	"github.com/mediastackhq/mediastack/api/pkg/logger"
	"github.com/mediastackhq/mediastack/api/types"
)

type Handler struct {
	controller installctl.Controller
	logger     logrus.FieldLogger
}

type Option func(*Handler)

func WithController(controller installctl.Controller) Option {
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
		controller, err := installctl.NewInstallController(installctl.WithLogger(h.logger))
		if err != nil {
			return nil, err
		}
		h.controller = controller
	}

	return h, nil
}

// GetStatus returns the current installation session snapshot.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.controller.Status(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to get installation status")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusOK, status, h.logger)
}

// PostRun starts a new provisioning run. It responds 409 while a run is in
// progress and 202 once the new run is accepted.
func (h *Handler) PostRun(w http.ResponseWriter, r *http.Request) {
	var req types.InstallRequest
	if r.ContentLength > 0 {
		if err := utils.BindJSON(w, r, &req, h.logger); err != nil {
			return
		}
	}

	if err := h.controller.Start(r.Context(), req); err != nil {
		utils.LogError(r, err, h.logger, "failed to start installation")
		utils.JSONError(w, r, err, h.logger)
		return
	}

	status, err := h.controller.Status(r.Context())
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to get installation status")
		utils.JSONError(w, r, err, h.logger)
		return
	}
	utils.JSON(w, r, http.StatusAccepted, status, h.logger)
}
