// Package broadcast fans session snapshots out to push channel subscribers.
// Every published event is a full snapshot, so a slow subscriber can always
// drop stale events and catch up from the newest one.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mediastackhq/mediastack/api/types"
)

const defaultQueueSize = 16

var _ Broadcaster = (*broadcaster)(nil)

// Broadcaster distributes session snapshot envelopes to subscribers.
type Broadcaster interface {
	// Subscribe registers a new subscriber. The returned channel immediately
	// replays the most recent event, if any, so late joiners converge
	// without waiting for the next mutation.
	Subscribe() (string, <-chan types.Message)
	Unsubscribe(id string)
	// Publish snapshots the session into an envelope and enqueues it to
	// every subscriber. A full subscriber queue drops its oldest event to
	// make room; the newest snapshot supersedes everything dropped.
	Publish(session types.InstallationSession)
	// LastEvent returns the most recently published envelope.
	LastEvent() (types.Message, bool)
}

type broadcaster struct {
	subscribers map[string]chan types.Message
	lastEvent   *types.Message
	queueSize   int
	logger      logrus.FieldLogger
	mu          sync.Mutex
}

type BroadcasterOption func(*broadcaster)

func WithQueueSize(size int) BroadcasterOption {
	return func(b *broadcaster) {
		b.queueSize = size
	}
}

func WithLogger(logger logrus.FieldLogger) BroadcasterOption {
	return func(b *broadcaster) {
		b.logger = logger
	}
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(opts ...BroadcasterOption) Broadcaster {
	b := &broadcaster{
		subscribers: map[string]chan types.Message{},
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.queueSize <= 0 {
		b.queueSize = defaultQueueSize
	}
	if b.logger == nil {
		b.logger = logrus.New()
	}

	return b
}

func (b *broadcaster) Subscribe() (string, <-chan types.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan types.Message, b.queueSize)
	b.subscribers[id] = ch

	if b.lastEvent != nil {
		ch <- *b.lastEvent
	}

	b.logger.WithField("subscriber", id).Debug("push channel subscriber added")
	return id, ch
}

func (b *broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)

	b.logger.WithField("subscriber", id).Debug("push channel subscriber removed")
}

func (b *broadcaster) Publish(session types.InstallationSession) {
	msg, err := types.NewSnapshotMessage(session)
	if err != nil {
		b.logger.WithError(err).Error("failed to build snapshot message")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastEvent = &msg

	for id, ch := range b.subscribers {
		b.enqueue(id, ch, msg)
	}
}

func (b *broadcaster) LastEvent() (types.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastEvent == nil {
		return types.Message{}, false
	}
	return *b.lastEvent, true
}

// enqueue delivers without ever blocking the publisher. Must be called with
// the mutex held so nobody else drains the channel concurrently.
func (b *broadcaster) enqueue(id string, ch chan types.Message, msg types.Message) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
			b.logger.WithField("subscriber", id).Debug("subscriber queue full, dropped oldest event")
		default:
		}
	}
}
