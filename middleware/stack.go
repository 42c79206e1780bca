package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/logging"
)

// Stack runs an ordered list of middleware. Inbound messages visit the
// middleware first to last, outbound messages last to first, so the
// middleware closest to the transport sees inbound traffic first and
// outbound traffic last.
type Stack struct {
	middlewares []core.Middleware
	logger      logging.Logger
}

// NewStack creates a stack from the given middleware.
func NewStack(mws ...core.Middleware) *Stack {
	return &Stack{middlewares: mws, logger: logging.NoOpLogger{}}
}

// WithLogger sets the logger used for chain failures.
func (s *Stack) WithLogger(l logging.Logger) *Stack {
	if l != nil {
		s.logger = l
	}
	return s
}

// Middlewares returns a copy of the configured middleware slice.
func (s *Stack) Middlewares() []core.Middleware {
	out := make([]core.Middleware, len(s.middlewares))
	copy(out, s.middlewares)
	return out
}

// Setup sets up every middleware in order. If one fails, the ones already
// set up are torn down again.
func (s *Stack) Setup(ctx context.Context) error {
	for i, mw := range s.middlewares {
		if err := mw.Setup(ctx); err != nil {
			teardownErr := teardown(ctx, s.middlewares[:i])
			return errors.Join(fmt.Errorf("setup %s: %w", mw.Name(), err), teardownErr)
		}
	}
	return nil
}

// Teardown tears down every middleware in reverse order and joins errors.
func (s *Stack) Teardown(ctx context.Context) error {
	return teardown(ctx, s.middlewares)
}

func teardown(ctx context.Context, mws []core.Middleware) error {
	var errs []error
	for i := len(mws) - 1; i >= 0; i-- {
		if err := mws[i].Teardown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("teardown %s: %w", mws[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ApplyInbound passes msg through every middleware in order.
func (s *Stack) ApplyInbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	var err error
	for _, mw := range s.middlewares {
		msg, err = mw.HandleInbound(ctx, msg, connector)
		if err != nil {
			s.logger.Error("middleware.inbound.failed", "middleware", mw.Name(), "connector", connector, "error", err)
			return nil, fmt.Errorf("%s inbound: %w", mw.Name(), err)
		}
	}
	return msg, nil
}

// ApplyOutbound passes msg through every middleware in reverse order.
func (s *Stack) ApplyOutbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	var err error
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		mw := s.middlewares[i]
		msg, err = mw.HandleOutbound(ctx, msg, connector)
		if err != nil {
			s.logger.Error("middleware.outbound.failed", "middleware", mw.Name(), "connector", connector, "error", err)
			return nil, fmt.Errorf("%s outbound: %w", mw.Name(), err)
		}
	}
	return msg, nil
}
