// Package logging provides a minimal logging interface and adapters for gatemesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that middleware, stores and connectors use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - GatewayLogger with connector/component context and session helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	gw, err := gatemesh.New(func(o *gatemesh.Options) { o.Logger = logger })
package logging
