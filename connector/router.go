package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/logging"
	gwmiddleware "github.com/hupe1980/gatemesh/middleware"
)

// Gateway is the subset of the gatemesh gateway the connector needs.
type Gateway interface {
	Inbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error)
	Outbound(ctx context.Context, msg *core.Message, connector string) (*core.Message, error)
	Session(ctx context.Context, connector, address string) (gwmiddleware.SessionInfo, error)
}

// Handler serves connector routes for a gateway.
type Handler struct {
	gateway Gateway
	logger  logging.Logger
	ws      *WebSocketHandler
}

// New creates a connector handler.
func New(gw Gateway, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Handler{gateway: gw, logger: logger, ws: NewWebSocketHandler(gw, logger)}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
}

// NewRouter wires HTTP routes for gw.
func NewRouter(gw Gateway, logger logging.Logger, optFns ...func(o *RouterOptions)) http.Handler {
	var opts RouterOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	New(gw, logger).RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the connector routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/connectors/{connector}", func(c chi.Router) {
		c.Post("/inbound", h.handleMessage(core.Inbound))
		c.Post("/outbound", h.handleMessage(core.Outbound))
		c.Get("/sessions/{address}", h.handleSession)
		h.ws.RegisterRoutes(c)
	})
}

func (h *Handler) handleMessage(dir core.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connector := chi.URLParam(r, "connector")

		var msg core.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			respondError(w, http.StatusBadRequest, "invalid message body")
			return
		}
		prepareMessage(&msg, connector)

		out, err := process(r.Context(), h.gateway, &msg, connector, dir)
		if err != nil {
			h.logger.Error("connector.message.failed", "connector", connector, "direction", dir.String(), "message_id", msg.MessageID, "error", err)
			respondError(w, statusFor(err), err.Error())
			return
		}

		respondJSON(w, http.StatusOK, out)
	}
}

type sessionResponse struct {
	Key          string  `json:"key"`
	SessionStart float64 `json:"session_start"`
	TTLSeconds   float64 `json:"ttl_seconds"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	connector := chi.URLParam(r, "connector")
	address := chi.URLParam(r, "address")

	info, err := h.gateway.Session(r.Context(), connector, address)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	ttl := info.TTL.Seconds()
	if info.TTL == core.NoExpiry {
		ttl = -1
	}
	respondJSON(w, http.StatusOK, sessionResponse{Key: info.Key, SessionStart: info.Start, TTLSeconds: ttl})
}

// prepareMessage fills envelope fields a transport may leave out.
func prepareMessage(msg *core.Message, connector string) {
	if msg.MessageID == "" {
		msg.MessageID = core.NewID()
	}
	if msg.TransportName == "" {
		msg.TransportName = connector
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.HelperMetadata == nil {
		msg.HelperMetadata = map[string]any{}
	}
}

func process(ctx context.Context, gw Gateway, msg *core.Message, connector string, dir core.Direction) (*core.Message, error) {
	if dir == core.Outbound {
		return gw.Outbound(ctx, msg, connector)
	}
	return gw.Inbound(ctx, msg, connector)
}
