package core

import "context"

// Middleware inspects and mutates messages as they pass through a named
// connector. Handlers return the message to hand to the next middleware,
// normally the same pointer they received.
type Middleware interface {
	// Name returns the configured instance name.
	Name() string
	// Setup acquires resources before the first message.
	Setup(ctx context.Context) error
	// Teardown releases resources acquired by Setup.
	Teardown(ctx context.Context) error
	// HandleInbound processes a message arriving on connector.
	HandleInbound(ctx context.Context, msg *Message, connector string) (*Message, error)
	// HandleOutbound processes a message leaving through connector.
	HandleOutbound(ctx context.Context, msg *Message, connector string) (*Message, error)
}
