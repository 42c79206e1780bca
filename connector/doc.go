// Package connector exposes a gateway to transports over HTTP and WebSocket.
// Every route is scoped to a connector name taken from the URL; messages are
// passed through the gateway's middleware and returned annotated. Routing and
// delivery stay with the hosting transport.
package connector
