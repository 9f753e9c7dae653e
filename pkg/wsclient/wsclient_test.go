package wsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastackhq/mediastack/api/types"
)

func TestBackoffDelay(t *testing.T) {
	c := New("ws://localhost/api/ws", WithBaseDelay(time.Second))

	wantMillis := []int64{1000, 1500, 2250, 3375}
	for i, want := range wantMillis {
		got := c.backoffDelay(i + 1)
		assert.Equal(t, want, got.Milliseconds(), "attempt %d", i+1)
	}
}

func TestBackoffDelay_Cap(t *testing.T) {
	c := New("ws://localhost/api/ws", WithBaseDelay(time.Second))

	// By attempt 10 the raw delay exceeds 30s and saturates.
	assert.Equal(t, int64(30000), c.backoffDelay(10).Milliseconds())
	assert.Equal(t, int64(30000), c.backoffDelay(50).Milliseconds())
}

func TestBackoffDelay_CustomBase(t *testing.T) {
	c := New("ws://localhost/api/ws", WithBaseDelay(200*time.Millisecond), WithMaxDelay(time.Second))

	assert.Equal(t, int64(200), c.backoffDelay(1).Milliseconds())
	assert.Equal(t, int64(300), c.backoffDelay(2).Milliseconds())
	assert.Equal(t, int64(450), c.backoffDelay(3).Milliseconds())
	assert.Equal(t, int64(1000), c.backoffDelay(7).Milliseconds())
}

func wsTestServer(t *testing.T, handle func(conn *gwebsocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := gwebsocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRun_ReceivesMessagesAndStopsOnCleanClose(t *testing.T) {
	server := wsTestServer(t, func(conn *gwebsocket.Conn) {
		// First inbound frame must be the status request.
		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read status request: %v", err)
			return
		}
		if msg.Type != types.MessageTypeStatusRequest {
			t.Errorf("expected status_request, got %s", msg.Type)
		}

		snapshot, _ := types.NewSnapshotMessage(types.InstallationSession{
			Status:          types.InstallationStateInProgress,
			OverallProgress: 10,
		})
		_ = conn.WriteJSON(snapshot)

		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(gwebsocket.CloseMessage,
			gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, ""), deadline)
	})
	defer server.Close()

	var received atomic.Int32
	c := New(wsURL(server), WithBaseDelay(10*time.Millisecond), WithMaxAttempts(2))

	err := c.Run(context.Background(), func(msg types.Message) {
		received.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), received.Load())
}

func TestRun_GivesUpAfterMaxAttempts(t *testing.T) {
	c := New("ws://127.0.0.1:1/api/ws", WithBaseDelay(time.Millisecond), WithMaxAttempts(3))

	start := time.Now()
	err := c.Run(context.Background(), func(types.Message) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 connection attempts")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_ContextCancellation(t *testing.T) {
	server := wsTestServer(t, func(conn *gwebsocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(wsURL(server), WithBaseDelay(10*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(types.Message) {})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop on context cancellation")
	}
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	server := wsTestServer(t, func(conn *gwebsocket.Conn) {
		n := connections.Add(1)

		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if n == 1 {
			// Drop the first connection abruptly to force a retry.
			conn.Close()
			return
		}

		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(gwebsocket.CloseMessage,
			gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, ""), deadline)
	})
	defer server.Close()

	c := New(wsURL(server), WithBaseDelay(10*time.Millisecond), WithMaxAttempts(5))
	err := c.Run(context.Background(), func(types.Message) {})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestRun_NoGoroutineLeakAcrossReconnects(t *testing.T) {
	var connections atomic.Int32
	server := wsTestServer(t, func(conn *gwebsocket.Conn) {
		n := connections.Add(1)

		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if n < 4 {
			// Drop the first few connections to force repeated reconnects.
			conn.Close()
			return
		}

		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(gwebsocket.CloseMessage,
			gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, ""), deadline)
	})
	defer server.Close()

	before := runtime.NumGoroutine()

	// The context outlives the run, so a watcher that only exits on
	// cancellation would stay parked after every reconnect.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(wsURL(server), WithBaseDelay(10*time.Millisecond), WithMaxAttempts(10))
	require.NoError(t, c.Run(ctx, func(types.Message) {}))
	require.GreaterOrEqual(t, connections.Load(), int32(4))

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 5*time.Second, 50*time.Millisecond, "connection watchers outlived their connections")
}
