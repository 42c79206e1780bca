// Package gatemesh provides a high-level façade for hosting message
// middleware inside a store-and-forward messaging gateway. Most applications
// interact with this package by:
//  1. Creating a Gateway via New() (optionally overriding the default in-memory store)
//  2. Calling Start before the first message and Close on shutdown
//  3. Passing every user message through Inbound or Outbound with the name
//     of the connector it travels on
//
// The session length middleware is always installed as the innermost
// middleware; additional middleware can be stacked in front of it.
package gatemesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/logging"
	"github.com/hupe1980/gatemesh/middleware"
	"github.com/hupe1980/gatemesh/store"
)

// SessionLengthName is the instance name of the built-in session middleware.
const SessionLengthName = "session_length"

// Options configures the Gateway instance.
type Options struct {
	// Store persists session records. Defaults to an in-memory store owned
	// by the gateway, purged every store.DefaultCleanupInterval and stopped
	// by Close. Share one Redis-backed store between workers to track
	// sessions across processes.
	Store core.KVStore

	// Clock stamps session boundaries (defaults to the system clock).
	Clock core.Clock

	// Session holds timeout and metadata field name of the session length
	// middleware. Zero values fall back to middleware.DefaultConfig.
	Session middleware.Config

	// Middlewares run before the session length middleware on inbound
	// traffic and after it on outbound traffic.
	Middlewares []core.Middleware

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Recorder receives session and store measurements (defaults to
	// core.NoOpRecorder). metrics.Collector exports them to Prometheus.
	Recorder core.Recorder
}

// Gateway aggregates the middleware stack and the session tracker.
type Gateway struct {
	opts     Options
	sessions *middleware.SessionLength
	stack    *middleware.Stack
	owned    *store.InMemoryStore
}

// New creates a new Gateway with optional overrides.
func New(optFns ...func(o *Options)) (*Gateway, error) {
	opts := Options{
		Clock:    core.SystemClock,
		Session:  middleware.DefaultConfig,
		Logger:   logging.NoOpLogger{},
		Recorder: core.NoOpRecorder{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	var owned *store.InMemoryStore
	if opts.Store == nil {
		owned = store.NewInMemoryStore(func(o *store.InMemoryOptions) {
			o.CleanupInterval = store.DefaultCleanupInterval
		})
		opts.Store = owned
	}

	sessions, err := middleware.NewSessionLength(SessionLengthName, func(o *middleware.SessionLengthOptions) {
		o.Config = opts.Session
		o.Store = opts.Store
		o.Clock = opts.Clock
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
	})
	if err != nil {
		if owned != nil {
			_ = owned.Close()
		}
		return nil, fmt.Errorf("failed to create session middleware: %w", err)
	}

	mws := make([]core.Middleware, 0, len(opts.Middlewares)+1)
	mws = append(mws, opts.Middlewares...)
	mws = append(mws, sessions)

	return &Gateway{
		opts:     opts,
		sessions: sessions,
		stack:    middleware.NewStack(mws...).WithLogger(opts.Logger),
		owned:    owned,
	}, nil
}

// Start sets up every middleware.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.stack.Setup(ctx); err != nil {
		return err
	}
	g.opts.Logger.Info("gateway.started", "middlewares", len(g.stack.Middlewares()), "session_timeout", g.sessions.Timeout())
	return nil
}

// Close tears down every middleware and stops the cleanup loop of the
// default store. A store passed in Options is owned by the caller.
func (g *Gateway) Close(ctx context.Context) error {
	err := g.stack.Teardown(ctx)
	if g.owned != nil {
		err = errors.Join(err, g.owned.Close())
	}
	return err
}

// Inbound runs msg, received on connector, through the middleware stack.
func (g *Gateway) Inbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	return g.stack.ApplyInbound(ctx, msg, connector)
}

// Outbound runs msg, about to be sent on connector, through the middleware
// stack in reverse order.
func (g *Gateway) Outbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	return g.stack.ApplyOutbound(ctx, msg, connector)
}

// Session returns the open session between connector and address, or
// core.ErrNotFound.
func (g *Gateway) Session(ctx context.Context, connector, address string) (middleware.SessionInfo, error) {
	info, found, err := g.sessions.Lookup(ctx, connector, address)
	if err != nil {
		return middleware.SessionInfo{}, err
	}
	if !found {
		return middleware.SessionInfo{}, core.ErrNotFound
	}
	return info, nil
}

// SessionField returns the helper metadata field session timestamps are
// written to.
func (g *Gateway) SessionField() string { return g.sessions.FieldName() }
