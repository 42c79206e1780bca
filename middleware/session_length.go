package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/logging"
)

// ErrInvalidSessionRecord is returned when a stored session start time cannot
// be parsed.
var ErrInvalidSessionRecord = fmt.Errorf("invalid session record")

const (
	sessionKeySuffix = "session_created"

	// SessionStartField and SessionEndField are written into the configured
	// helper metadata field.
	SessionStartField = "session_start"
	SessionEndField   = "session_end"
)

// SessionKey returns the store key holding the start time of the session
// between connector and address.
func SessionKey(connector, address string) string {
	return connector + ":" + address + ":" + sessionKeySuffix
}

// SessionLengthOptions configures a SessionLength middleware.
type SessionLengthOptions struct {
	// Config holds timeout and field name; zero values take DefaultConfig.
	Config Config
	// Store persists session start times. Required.
	Store core.KVStore
	// Clock stamps session boundaries. Defaults to core.SystemClock.
	Clock core.Clock
	// Logger defaults to a no-op logger.
	Logger logging.Logger
	// Recorder receives session counts and store latencies. Defaults to
	// core.NoOpRecorder.
	Recorder core.Recorder
}

// SessionLength annotates messages with the start and end time of the
// session they belong to. It keeps no state of its own: start times live in
// the injected store so every worker sharing the store sees the same
// sessions. Reads and writes are not serialized per key; a host needing
// stronger ordering must impose it before calling Process.
type SessionLength struct {
	name      string
	timeout   time.Duration
	fieldName string
	store     core.KVStore
	clock     core.Clock
	logger    logging.Logger
	recorder  core.Recorder
}

// Interface compliance (compile-time assertion)
var _ core.Middleware = (*SessionLength)(nil)

// NewSessionLength builds a named SessionLength middleware.
func NewSessionLength(name string, optFns ...func(o *SessionLengthOptions)) (*SessionLength, error) {
	opts := SessionLengthOptions{
		Config:   DefaultConfig,
		Clock:    core.SystemClock,
		Logger:   logging.NoOpLogger{},
		Recorder: core.NoOpRecorder{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg, err := opts.Config.withDefaults()
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: %s requires a store", ErrInvalidConfig, name)
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Recorder == nil {
		opts.Recorder = core.NoOpRecorder{}
	}

	return &SessionLength{
		name:      name,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
		fieldName: cfg.FieldName,
		store:     opts.Store,
		clock:     opts.Clock,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}, nil
}

// Name returns the middleware instance name.
func (m *SessionLength) Name() string { return m.name }

// Timeout returns the lifetime of session records.
func (m *SessionLength) Timeout() time.Duration { return m.timeout }

// FieldName returns the helper metadata field written by the middleware.
func (m *SessionLength) FieldName() string { return m.fieldName }

// Setup implements core.Middleware.
func (m *SessionLength) Setup(context.Context) error {
	m.logger.Debug("middleware.setup", "middleware", m.name, "timeout", m.timeout, "field_name", m.fieldName)
	return nil
}

// Teardown implements core.Middleware. The store is owned by the caller and
// is left open.
func (m *SessionLength) Teardown(context.Context) error {
	m.logger.Debug("middleware.teardown", "middleware", m.name)
	return nil
}

// HandleInbound tracks the session keyed on the sender address.
func (m *SessionLength) HandleInbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	return m.Process(ctx, msg, connector, core.Inbound)
}

// HandleOutbound tracks the session keyed on the recipient address.
func (m *SessionLength) HandleOutbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error) {
	return m.Process(ctx, msg, connector, core.Outbound)
}

// Process records or resolves the session boundary carried by msg and
// returns msg with its helper metadata updated. Messages that neither open
// nor close a session pass through without touching the store.
func (m *SessionLength) Process(ctx context.Context, msg *core.Message, connector string, dir core.Direction) (*core.Message, error) {
	key := SessionKey(connector, msg.Address(dir))

	switch msg.SessionEvent {
	case core.SessionNew:
		return msg, m.sessionStart(ctx, msg, connector, dir, key)
	case core.SessionClose:
		return msg, m.sessionEnd(ctx, msg, connector, dir, key)
	default:
		return msg, nil
	}
}

func (m *SessionLength) sessionStart(ctx context.Context, msg *core.Message, connector string, dir core.Direction, key string) error {
	now := core.UnixSeconds(m.clock.Now())
	if err := m.storeCall("set", key, func() error {
		return m.store.Set(ctx, key, formatTimestamp(now), m.timeout)
	}); err != nil {
		return fmt.Errorf("session length %s: record start: %w", m.name, err)
	}

	msg.MetadataField(m.fieldName)[SessionStartField] = now
	m.recorder.SessionStarted(connector, dir)
	m.logSession(connector, dir, key, "start", 0)
	return nil
}

func (m *SessionLength) sessionEnd(ctx context.Context, msg *core.Message, connector string, dir core.Direction, key string) error {
	var (
		raw   string
		found bool
	)
	if err := m.storeCall("get", key, func() (err error) {
		raw, found, err = m.store.Get(ctx, key)
		return err
	}); err != nil {
		return fmt.Errorf("session length %s: read start: %w", m.name, err)
	}
	if found {
		if err := m.storeCall("delete", key, func() error { return m.store.Delete(ctx, key) }); err != nil {
			return fmt.Errorf("session length %s: delete start: %w", m.name, err)
		}
	}

	end := core.UnixSeconds(m.clock.Now())
	field := msg.MetadataField(m.fieldName)
	field[SessionEndField] = end

	if !found {
		m.recorder.SessionClosed(connector, dir, false, 0)
		m.logSession(connector, dir, key, "close", 0)
		return nil
	}

	start, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("session length %s: %w: %q at %s", m.name, ErrInvalidSessionRecord, raw, key)
	}
	field[SessionStartField] = start
	dur := time.Duration((end - start) * float64(time.Second))
	m.recorder.SessionClosed(connector, dir, true, dur)
	m.logSession(connector, dir, key, "close", dur)
	return nil
}

// SessionInfo describes an open session record.
type SessionInfo struct {
	Key   string        `json:"key"`
	Start float64       `json:"session_start"`
	TTL   time.Duration `json:"ttl"`
}

// Lookup returns the open session between connector and address, if any.
func (m *SessionLength) Lookup(ctx context.Context, connector, address string) (SessionInfo, bool, error) {
	key := SessionKey(connector, address)
	var (
		raw   string
		found bool
	)
	err := m.storeCall("get", key, func() (err error) {
		raw, found, err = m.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return SessionInfo{}, false, fmt.Errorf("session length %s: lookup: %w", m.name, err)
	}
	if !found {
		return SessionInfo{}, false, nil
	}
	start, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return SessionInfo{}, false, fmt.Errorf("session length %s: %w: %q at %s", m.name, ErrInvalidSessionRecord, raw, key)
	}
	var ttl time.Duration
	err = m.storeCall("ttl", key, func() (err error) {
		ttl, found, err = m.store.TTL(ctx, key)
		return err
	})
	if err != nil {
		return SessionInfo{}, false, fmt.Errorf("session length %s: lookup ttl: %w", m.name, err)
	}
	if !found {
		// expired between the two reads
		return SessionInfo{}, false, nil
	}
	return SessionInfo{Key: key, Start: start, TTL: ttl}, true, nil
}

func (m *SessionLength) storeCall(op, key string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.recorder.StoreCall(op, time.Since(start), err)
	if sl, ok := m.logger.(interface {
		LogStoreCall(op, key string, dur time.Duration, err error)
	}); ok {
		sl.LogStoreCall(op, key, time.Since(start), err)
	} else if err != nil {
		m.logger.Error("store.call.failed", "op", op, "key", key, "error", err)
	}
	return err
}

func (m *SessionLength) logSession(connector string, dir core.Direction, key, event string, dur time.Duration) {
	if sl, ok := m.logger.(interface {
		LogSessionEvent(connector, direction, key, event string, dur time.Duration)
	}); ok {
		sl.LogSessionEvent(connector, dir.String(), key, event, dur)
		return
	}
	m.logger.Debug("session."+event, "connector", connector, "direction", dir.String(), "key", key, "duration", dur)
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}
