// Package ws is the push channel endpoint. Each connection receives every
// session snapshot and can send status_request and install_start envelopes.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/pkg/broadcast"
	"github.com/mediastackhq/mediastack/api/internal/handlers/utils"
	"github.com/mediastackhq/mediastack/api/pkg/logger"
	"github.com/mediastackhq/mediastack/api/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

type Handler struct {
	controller  installctl.Controller
	broadcaster broadcast.Broadcaster
	upgrader    gwebsocket.Upgrader
	logger      logrus.FieldLogger
}

type Option func(*Handler)

func WithController(controller installctl.Controller) Option {
	return func(h *Handler) {
		h.controller = controller
	}
}

func WithBroadcaster(broadcaster broadcast.Broadcaster) Option {
	return func(h *Handler) {
		h.broadcaster = broadcaster
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{
		upgrader: gwebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.NewDiscardLogger()
	}
	if h.broadcaster == nil {
		h.broadcaster = broadcast.NewBroadcaster(broadcast.WithLogger(h.logger))
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

// HandleWebsocket upgrades the request and serves the push channel until the
// client disconnects.
func (h *Handler) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.LogError(r, err, h.logger, "failed to upgrade websocket connection")
		return
	}

	id, events := h.broadcaster.Subscribe()
	h.logger.WithField("subscriber", id).Debug("websocket client connected")

	// Direct replies bypass the broadcast queue so a status_request answer
	// cannot be starved by fan-out traffic.
	replies := make(chan types.Message, 4)
	done := make(chan struct{})

	go h.writeLoop(conn, events, replies, done)
	h.readLoop(conn, replies)

	close(done)
	h.broadcaster.Unsubscribe(id)
	conn.Close()
	h.logger.WithField("subscriber", id).Debug("websocket client disconnected")
}

func (h *Handler) writeLoop(conn *gwebsocket.Conn, events <-chan types.Message, replies <-chan types.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg types.Message
		select {
		case <-done:
			return
		case msg = <-replies:
		case event, ok := <-events:
			if !ok {
				return
			}
			msg = event
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gwebsocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (h *Handler) readLoop(conn *gwebsocket.Conn, replies chan<- types.Message) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gwebsocket.IsUnexpectedCloseError(err, gwebsocket.CloseNormalClosure, gwebsocket.CloseGoingAway) {
				h.logger.WithError(err).Debug("websocket read failed")
			}
			return
		}

		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.WithError(err).Debugf("failed to unmarshal message: %s", string(data))
			continue
		}
		if err := msg.Validate(); err != nil {
			h.logger.WithError(err).Debug("invalid message")
			continue
		}

		switch msg.Type {
		case types.MessageTypeStatusRequest:
			h.handleStatusRequest(replies)
		case types.MessageTypeInstallStart:
			h.handleInstallStart(msg, replies)
		default:
			h.logger.Debugf("ignoring message of type %s", msg.Type)
		}
	}
}

func (h *Handler) handleStatusRequest(replies chan<- types.Message) {
	session, err := h.controller.Status(context.Background())
	if err != nil {
		h.logger.WithError(err).Error("failed to get status for websocket request")
		return
	}

	msg, err := types.NewSnapshotMessage(session.InstallationSession)
	if err != nil {
		h.logger.WithError(err).Error("failed to build snapshot for websocket request")
		return
	}

	select {
	case replies <- msg:
	default:
		h.logger.Debug("dropping status reply, client is not reading")
	}
}

func (h *Handler) handleInstallStart(msg types.Message, replies chan<- types.Message) {
	var req types.InstallRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			h.logger.WithError(err).Debug("invalid install_start payload")
			return
		}
	}

	if err := h.controller.Start(context.Background(), req); err != nil {
		// Conflicts and validation problems still yield a snapshot so the
		// client sees the run it collided with.
		h.logger.WithError(err).Info("websocket install_start rejected")
	}
	h.handleStatusRequest(replies)
}
