package testutil

import "github.com/hupe1980/gatemesh/core"

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().To("+12345").From("+54321").Close().Build()
//
// Chain only the parts you need; defaults mirror a dummy transport.
type MessageBuilder struct {
	to            string
	from          string
	transportName string
	transportType string
	event         core.SessionEvent
	metadata      map[string]any
}

// NewMessageBuilder creates a builder for a session-opening message on the
// dummy connector.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		to:            "+12345",
		from:          "+54321",
		transportName: "dummy_connector",
		transportType: "dummy_transport_type",
		event:         core.SessionNew,
	}
}

// To sets the recipient address (chainable).
func (b *MessageBuilder) To(addr string) *MessageBuilder { b.to = addr; return b }

// From sets the sender address (chainable).
func (b *MessageBuilder) From(addr string) *MessageBuilder { b.from = addr; return b }

// Transport sets transport name and type (chainable).
func (b *MessageBuilder) Transport(name, typ string) *MessageBuilder {
	b.transportName = name
	b.transportType = typ
	return b
}

// Event sets the session event (chainable).
func (b *MessageBuilder) Event(ev core.SessionEvent) *MessageBuilder { b.event = ev; return b }

// Close marks the message as closing its session (chainable).
func (b *MessageBuilder) Close() *MessageBuilder { return b.Event(core.SessionClose) }

// Metadata sets a top-level helper metadata entry (chainable).
func (b *MessageBuilder) Metadata(key string, v any) *MessageBuilder {
	if b.metadata == nil {
		b.metadata = map[string]any{}
	}
	b.metadata[key] = v
	return b
}

// Build constructs the message.
func (b *MessageBuilder) Build() *core.Message {
	msg := core.NewMessage(b.to, b.from, b.transportName, b.event)
	msg.TransportType = b.transportType
	for k, v := range b.metadata {
		msg.HelperMetadata[k] = v
	}
	return msg
}
