package health

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/api/internal/handlers/utils"
	"github.com/mediastackhq/mediastack/api/pkg/logger"
	"github.com/mediastackhq/mediastack/api/types"
)

type Handler struct {
	logger logrus.FieldLogger
}

type Option func(*Handler)

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

	return h, nil
}

// GetHealth reports liveness of the API.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := types.Health{
		Status: types.HealthStatusOK,
	}
	utils.JSON(w, r, http.StatusOK, response, h.logger)
}
