package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	installctl "github.com/mediastackhq/mediastack/api/controllers/install"
	"github.com/mediastackhq/mediastack/api/pkg/broadcast"
	appsession "github.com/mediastackhq/mediastack/api/pkg/managers/session"
	sessionstore "github.com/mediastackhq/mediastack/api/internal/store/session"
	"github.com/mediastackhq/mediastack/api/types"
	"github.com/mediastackhq/mediastack/pkg/appconfig"
	"github.com/mediastackhq/mediastack/pkg/stages"
	"github.com/mediastackhq/mediastack/pkg/wsclient"
)

func handler(h *Handler) http.Handler {
	return http.HandlerFunc(h.HandleWebsocket)
}

func dial(t *testing.T, serverURL string) *gwebsocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, resp, err := gwebsocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

func readMessage(t *testing.T, conn *gwebsocket.Conn) types.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg types.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleWebsocket_BroadcastDelivery(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	controller := &installctl.MockController{}

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	server := httptest.NewServer(handler(h))
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	broadcaster.Publish(types.InstallationSession{
		Status:          types.InstallationStateInProgress,
		OverallProgress: 33,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, types.MessageTypeStatusUpdate, msg.Type)

	var snapshot types.InstallStatusResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &snapshot))
	assert.Equal(t, float64(33), snapshot.OverallProgress)
}

func TestHandleWebsocket_LateJoinerGetsLastEvent(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	controller := &installctl.MockController{}

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	broadcaster.Publish(types.InstallationSession{
		Status:          types.InstallationStateCompleted,
		OverallProgress: 100,
	})

	server := httptest.NewServer(handler(h))
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, types.MessageTypeStatusComplete, msg.Type)
}

func TestHandleWebsocket_StatusRequest(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	controller := &installctl.MockController{}
	controller.On("Status", mock.Anything).Return(types.NewInstallStatusResponse(types.InstallationSession{
		Status:          types.InstallationStateInProgress,
		OverallProgress: 55,
	}), nil)

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	server := httptest.NewServer(handler(h))
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(types.Message{
		Type:      types.MessageTypeStatusRequest,
		Timestamp: time.Now(),
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, types.MessageTypeStatusUpdate, msg.Type)

	var snapshot types.InstallStatusResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &snapshot))
	assert.Equal(t, float64(55), snapshot.OverallProgress)
	controller.AssertExpectations(t)
}

func TestHandleWebsocket_InstallStart(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	controller := &installctl.MockController{}
	controller.On("Start", mock.Anything, mock.Anything).Return(nil)
	controller.On("Status", mock.Anything).Return(types.NewInstallStatusResponse(types.InstallationSession{
		Status: types.InstallationStateInProgress,
	}), nil)

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	server := httptest.NewServer(handler(h))
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	payload, err := json.Marshal(types.InstallRequest{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(types.Message{
		Type:      types.MessageTypeInstallStart,
		Payload:   payload,
		Timestamp: time.Now(),
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, types.MessageTypeStatusUpdate, msg.Type)
	controller.AssertExpectations(t)
}

func TestHandleWebsocket_InvalidMessageIgnored(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	controller := &installctl.MockController{}

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	server := httptest.NewServer(handler(h))
	defer server.Close()

	conn := dial(t, server.URL)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gwebsocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(types.Message{Type: "bogus", Timestamp: time.Now()}))

	// Connection stays healthy; a broadcast still arrives.
	broadcaster.Publish(types.InstallationSession{Status: types.InstallationStateInProgress})
	msg := readMessage(t, conn)
	assert.Equal(t, types.MessageTypeStatusUpdate, msg.Type)
}

// staticExecutor fills the stage registry for tests that drive the session
// directly instead of running the orchestrator.
type staticExecutor struct {
	stage stages.Stage
}

func (e *staticExecutor) Stage() stages.Stage { return e.stage }

func (e *staticExecutor) Execute(ctx context.Context, handle stages.Handle) error { return nil }

// runSnapshotClient runs a reconnecting client against the websocket endpoint
// and forwards the overall progress of every status snapshot it receives.
func runSnapshotClient(ctx context.Context, wsURL string, progress chan<- float64) <-chan error {
	client := wsclient.New(wsURL,
		wsclient.WithBaseDelay(10*time.Millisecond),
		wsclient.WithMaxAttempts(5),
	)
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, func(msg types.Message) {
			if msg.Type != types.MessageTypeStatusUpdate && msg.Type != types.MessageTypeStatusComplete {
				return
			}
			var snapshot types.InstallStatusResponse
			if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
				return
			}
			progress <- snapshot.OverallProgress
		})
	}()
	return done
}

func TestHandleWebsocket_ReconnectSnapshotNeverRegresses(t *testing.T) {
	broadcaster := broadcast.NewBroadcaster()
	manager := appsession.NewManager(
		appsession.WithStore(sessionstore.NewMemoryStore()),
		appsession.WithBroadcaster(broadcaster),
	)

	executors := []stages.Executor{
		&staticExecutor{stage: stages.Stage{ID: "docker_setup", DisplayName: "Docker Setup", Weight: 0.4}},
		&staticExecutor{stage: stages.Stage{ID: "containers", DisplayName: "Containers", Weight: 0.6}},
	}
	controller, err := installctl.NewInstallController(
		installctl.WithSessionManager(manager),
		installctl.WithExecutors(executors),
	)
	require.NoError(t, err)

	h, err := New(WithBroadcaster(broadcaster), WithController(controller))
	require.NoError(t, err)

	server := httptest.NewServer(handler(h))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// Drive the session by hand so it keeps running across the reconnect.
	stage := executors[0].Stage()
	require.NoError(t, manager.Begin(appconfig.Bundle{
		Config:   appconfig.DefaultConfig(),
		Services: appconfig.DefaultServices(),
	}))
	require.NoError(t, manager.BeginStage(stage))
	manager.StageHandle(stage).SetProgress(25)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstProgress := make(chan float64, 64)
	firstDone := runSnapshotClient(firstCtx, wsURL, firstProgress)

	// Overall progress is 10 after the 0.4-weight stage reaches 25%.
	var lastSeen float64
	deadline := time.After(5 * time.Second)
	for lastSeen < 10 {
		select {
		case p := <-firstProgress:
			if p > lastSeen {
				lastSeen = p
			}
		case <-deadline:
			t.Fatalf("no snapshot reached 10%% before disconnect, last seen %v", lastSeen)
		}
	}

	// Disconnect mid-run.
	cancelFirst()
	require.ErrorIs(t, <-firstDone, context.Canceled)

	// The run advances while no client is connected.
	manager.StageHandle(stage).SetProgress(80)

	secondCtx, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	secondProgress := make(chan float64, 64)
	runSnapshotClient(secondCtx, wsURL, secondProgress)

	select {
	case p := <-secondProgress:
		assert.GreaterOrEqual(t, p, lastSeen, "snapshot after reconnect regressed")
		assert.InDelta(t, 32, p, 0.001)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot received after reconnect")
	}
}
