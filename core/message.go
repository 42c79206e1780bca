package core

import (
	"time"

	"github.com/google/uuid"
)

// SessionEvent marks where a message sits in a session. Transports set it on
// every user message; an empty value means the message does not open, resume
// or close anything.
type SessionEvent string

const (
	// SessionNone marks a message inside (or outside) a session boundary.
	SessionNone SessionEvent = ""
	// SessionNew opens a session.
	SessionNew SessionEvent = "new"
	// SessionResume continues an existing session.
	SessionResume SessionEvent = "resume"
	// SessionClose ends a session.
	SessionClose SessionEvent = "close"
)

// Message is a user message travelling through a transport connector. The
// gateway owns the envelope; middleware only reads the addressing fields and
// the session event and writes into HelperMetadata.
type Message struct {
	MessageID      string         `json:"message_id"`
	ToAddr         string         `json:"to_addr"`
	FromAddr       string         `json:"from_addr"`
	TransportName  string         `json:"transport_name"`
	TransportType  string         `json:"transport_type"`
	SessionEvent   SessionEvent   `json:"session_event"`
	Content        string         `json:"content,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	HelperMetadata map[string]any `json:"helper_metadata"`
}

// NewMessage creates a message with a fresh id and UTC timestamp.
func NewMessage(toAddr, fromAddr, transportName string, event SessionEvent) *Message {
	return &Message{
		MessageID:      NewID(),
		ToAddr:         toAddr,
		FromAddr:       fromAddr,
		TransportName:  transportName,
		SessionEvent:   event,
		Timestamp:      time.Now().UTC(),
		HelperMetadata: map[string]any{},
	}
}

// NewID generates a new unique message identifier.
func NewID() string { return uuid.NewString() }

// Address returns the address tracked for the given direction: the sender for
// inbound traffic and the recipient for outbound traffic.
func (m *Message) Address(d Direction) string {
	if d == Outbound {
		return m.ToAddr
	}
	return m.FromAddr
}

// MetadataField returns the nested helper metadata map stored under name,
// creating it when it is missing or holds a non-map value. The returned map is
// owned by the message; writes to it are visible on the message.
func (m *Message) MetadataField(name string) map[string]any {
	if m.HelperMetadata == nil {
		m.HelperMetadata = map[string]any{}
	}
	if field, ok := m.HelperMetadata[name].(map[string]any); ok {
		return field
	}
	field := map[string]any{}
	m.HelperMetadata[name] = field
	return field
}
