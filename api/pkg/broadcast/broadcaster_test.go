package broadcast

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastackhq/mediastack/api/types"
)

func runningSession(progress float64) types.InstallationSession {
	return types.InstallationSession{
		Status:          types.InstallationStateInProgress,
		CurrentStageID:  "docker_setup",
		OverallProgress: progress,
	}
}

func decodeSnapshot(t *testing.T, msg types.Message) types.InstallStatusResponse {
	t.Helper()
	var resp types.InstallStatusResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	return resp
}

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()

	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Publish(runningSession(42))

	for _, ch := range []<-chan types.Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, types.MessageTypeStatusUpdate, msg.Type)
			assert.Equal(t, float64(42), decodeSnapshot(t, msg).OverallProgress)
			assert.False(t, msg.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe()

	for i := 1; i <= 5; i++ {
		b.Publish(runningSession(float64(i * 10)))
	}

	var got []float64
	for i := 0; i < 5; i++ {
		msg := <-ch
		got = append(got, decodeSnapshot(t, msg).OverallProgress)
	}
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, got)
}

func TestPublish_SlowSubscriberDropsOldest(t *testing.T) {
	b := NewBroadcaster(WithQueueSize(2))
	_, ch := b.Subscribe()

	// Nobody drains, so events beyond the queue push out the oldest.
	for i := 1; i <= 10; i++ {
		b.Publish(runningSession(float64(i * 10)))
	}

	first := <-ch
	second := <-ch
	assert.Equal(t, float64(90), decodeSnapshot(t, first).OverallProgress)
	assert.Equal(t, float64(100), decodeSnapshot(t, second).OverallProgress)

	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra message: %v", msg.Type)
	default:
	}
}

func TestPublish_DoesNotBlockOtherSubscribers(t *testing.T) {
	b := NewBroadcaster(WithQueueSize(1))

	_, slow := b.Subscribe()
	_, fast := b.Subscribe()
	_ = slow

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			b.Publish(runningSession(float64(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The fast subscriber still converges on the newest snapshot.
	var last types.Message
	for {
		select {
		case msg := <-fast:
			last = msg
			continue
		default:
		}
		break
	}
	assert.Equal(t, float64(49), decodeSnapshot(t, last).OverallProgress)
}

func TestSubscribe_LateJoinerGetsLastEvent(t *testing.T) {
	b := NewBroadcaster()

	b.Publish(runningSession(75))

	_, ch := b.Subscribe()
	select {
	case msg := <-ch:
		assert.Equal(t, float64(75), decodeSnapshot(t, msg).OverallProgress)
	case <-time.After(time.Second):
		t.Fatal("late joiner did not receive the last event")
	}
}

func TestSubscribe_NoEventsYet(t *testing.T) {
	b := NewBroadcaster()

	_, ch := b.Subscribe()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %v", msg.Type)
	default:
	}

	_, ok := b.LastEvent()
	assert.False(t, ok)
}

func TestPublish_TerminalSessionIsStatusComplete(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe()

	session := runningSession(100)
	session.Status = types.InstallationStateCompleted
	b.Publish(session)

	msg := <-ch
	assert.Equal(t, types.MessageTypeStatusComplete, msg.Type)
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe()

	b.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	b.Publish(runningSession(10))

	// Unsubscribing twice is a no-op.
	b.Unsubscribe(id)
	b.Unsubscribe(fmt.Sprintf("unknown-%d", time.Now().UnixNano()))
}
