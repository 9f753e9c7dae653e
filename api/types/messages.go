package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of push channel envelope.
type MessageType string

const (
	// MessageTypeStatusRequest is sent by a client to ask for the current
	// session snapshot without waiting for the next mutation.
	MessageTypeStatusRequest MessageType = "status_request"
	// MessageTypeInstallStart is sent by a client to bootstrap a new
	// provisioning run.
	MessageTypeInstallStart MessageType = "install_start"
	// MessageTypeStatusUpdate carries a full session snapshot.
	MessageTypeStatusUpdate MessageType = "status_update"
	// MessageTypeStatusComplete carries the terminal snapshot including the
	// result summary.
	MessageTypeStatusComplete MessageType = "status_complete"
)

// Message is the push channel envelope. Payload is type-dependent: a session
// snapshot for outbound messages, an InstallRequest for install_start, empty
// for status_request.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (m Message) Validate() error {
	switch m.Type {
	case MessageTypeStatusRequest, MessageTypeInstallStart, MessageTypeStatusUpdate, MessageTypeStatusComplete:
		return nil
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", m.Type)
	}
}

// NewSnapshotMessage builds an outbound envelope from a session snapshot.
// The message type resolves to status_complete once the session is terminal.
func NewSnapshotMessage(session InstallationSession) (Message, error) {
	payload, err := json.Marshal(NewInstallStatusResponse(session))
	if err != nil {
		return Message{}, fmt.Errorf("marshal session snapshot: %w", err)
	}
	msgType := MessageTypeStatusUpdate
	if session.Status.IsTerminal() {
		msgType = MessageTypeStatusComplete
	}
	return Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}
