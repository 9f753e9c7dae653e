// Package wsclient is a reconnecting push channel client. It keeps a
// connection to the daemon's websocket endpoint, replays a status request
// after every (re)connect, and backs off exponentially between attempts.
package wsclient

import (
	"context"
	"encoding/json"
	"math"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/api/types"
)

const (
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 10

	backoffFactor = 1.5
)

var wsDialer = &gwebsocket.Dialer{
	HandshakeTimeout: 10 * time.Second,
}

// MessageHandler receives every envelope the server pushes.
type MessageHandler func(msg types.Message)

type Client struct {
	url         string
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	dialer      *gwebsocket.Dialer
	logger      logrus.FieldLogger
}

type ClientOption func(*Client)

func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseDelay sets the delay before the first reconnect attempt.
func WithBaseDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithMaxDelay caps the reconnect delay.
func WithMaxDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = delay
	}
}

// WithMaxAttempts bounds consecutive failed connection attempts before the
// client reports a persistent failure.
func WithMaxAttempts(attempts int) ClientOption {
	return func(c *Client) {
		c.maxAttempts = attempts
	}
}

func WithDialer(dialer *gwebsocket.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// New creates a client for the given websocket URL.
func New(url string, opts ...ClientOption) *Client {
	c := &Client{url: url}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.dialer == nil {
		c.dialer = wsDialer
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}

	return c
}

// Run connects and listens until the server closes cleanly or the context is
// canceled. Dropped connections are re-established with exponential backoff;
// once maxAttempts consecutive attempts fail, the last error is returned.
func (c *Client) Run(ctx context.Context, handler MessageHandler) error {
	attempt := 0
	for {
		connected, clean, err := c.attemptConnection(ctx, handler)
		if clean {
			return nil
		}
		if connected {
			// A connection was established; the failure streak is over.
			attempt = 0
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if attempt >= c.maxAttempts {
			return errors.Wrapf(err, "giving up after %d connection attempts", attempt)
		}

		delay := c.backoffDelay(attempt)
		c.logger.WithError(err).Warnf("connection lost, retrying in %s (attempt %d of %d)", delay, attempt, c.maxAttempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// attemptConnection dials, requests a status snapshot, and listens until the
// connection dies. clean is true only for a normal server-side close.
func (c *Client) attemptConnection(ctx context.Context, handler MessageHandler) (connected, clean bool, err error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, false, errors.Wrap(err, "connect to websocket server")
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	c.logger.Infof("connected to websocket server on %s", c.url)

	// Ask for the current snapshot so a reconnect converges immediately
	// instead of waiting for the next mutation.
	statusReq := types.Message{Type: types.MessageTypeStatusRequest, Timestamp: time.Now()}
	if err := conn.WriteJSON(statusReq); err != nil {
		return true, false, errors.Wrap(err, "send status request")
	}

	done := make(chan struct{})
	defer close(done)
	go c.watchContext(ctx, conn, done)

	clean, err = c.listen(conn, handler)
	return true, clean, err
}

func (c *Client) listen(conn *gwebsocket.Conn, handler MessageHandler) (clean bool, err error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gwebsocket.IsCloseError(err, gwebsocket.CloseNormalClosure, gwebsocket.CloseGoingAway) {
				c.logger.Info("server closed the connection")
				return true, nil
			}
			return false, errors.Wrap(err, "read message")
		}

		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.WithError(err).Errorf("failed to unmarshal message: %s", string(data))
			continue
		}
		if err := msg.Validate(); err != nil {
			c.logger.WithError(err).Error("invalid message")
			continue
		}

		handler(msg)
	}
}

// watchContext forces the blocked read loop to return when the context is
// canceled. done is closed when the attempt ends so the watcher does not
// outlive its connection.
func (c *Client) watchContext(ctx context.Context, conn *gwebsocket.Conn, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		conn.Close()
	case <-done:
	}
}

// backoffDelay grows geometrically from the base delay and saturates at the
// cap.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(backoffFactor, float64(attempt-1)))
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}
