package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/gatemesh"
	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/internal/testutil"
	"github.com/hupe1980/gatemesh/metrics"
	"github.com/hupe1980/gatemesh/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, times ...float64) http.Handler {
	t.Helper()
	gw, err := gatemesh.New(func(o *gatemesh.Options) {
		o.Clock = testutil.NewSequenceClock(times...)
	})
	require.NoError(t, err)
	require.NoError(t, gw.Start(context.Background()))
	t.Cleanup(func() { _ = gw.Close(context.Background()) })
	return NewRouter(gw, nil)
}

func post(t *testing.T, r http.Handler, path string, msg *core.Message) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeMessage(t *testing.T, resp *httptest.ResponseRecorder) core.Message {
	t.Helper()
	var msg core.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return msg
}

func TestInboundSessionStartAndClose(t *testing.T) {
	r := setupRouter(t, 0.0, 1.0)

	resp := post(t, r, "/connectors/sms/inbound", testutil.NewMessageBuilder().Build())
	require.Equal(t, http.StatusOK, resp.Code)
	msg := decodeMessage(t, resp)
	assert.Equal(t, 0.0, msg.MetadataField("session")[middleware.SessionStartField])

	req := httptest.NewRequest(http.MethodGet, "/connectors/sms/sessions/+54321", nil)
	sessResp := httptest.NewRecorder()
	r.ServeHTTP(sessResp, req)
	require.Equal(t, http.StatusOK, sessResp.Code)
	var info sessionResponse
	require.NoError(t, json.NewDecoder(sessResp.Body).Decode(&info))
	assert.Equal(t, "sms:+54321:session_created", info.Key)
	assert.LessOrEqual(t, info.TTLSeconds, 120.0)

	resp = post(t, r, "/connectors/sms/inbound", testutil.NewMessageBuilder().Close().Build())
	require.Equal(t, http.StatusOK, resp.Code)
	msg = decodeMessage(t, resp)
	f := msg.MetadataField("session")
	assert.Equal(t, 0.0, f[middleware.SessionStartField])
	assert.Equal(t, 1.0, f[middleware.SessionEndField])

	sessResp = httptest.NewRecorder()
	r.ServeHTTP(sessResp, httptest.NewRequest(http.MethodGet, "/connectors/sms/sessions/+54321", nil))
	assert.Equal(t, http.StatusNotFound, sessResp.Code)
}

func TestOutboundKeysOnRecipient(t *testing.T) {
	r := setupRouter(t, 2.0)

	resp := post(t, r, "/connectors/sms/outbound", testutil.NewMessageBuilder().Build())
	require.Equal(t, http.StatusOK, resp.Code)

	sessResp := httptest.NewRecorder()
	r.ServeHTTP(sessResp, httptest.NewRequest(http.MethodGet, "/connectors/sms/sessions/+12345", nil))
	assert.Equal(t, http.StatusOK, sessResp.Code)
}

func TestPrepareMessageDefaults(t *testing.T) {
	r := setupRouter(t, 0.0)

	req := httptest.NewRequest(http.MethodPost, "/connectors/ussd/inbound", bytes.NewReader([]byte(`{"to_addr":"*120#","from_addr":"+1"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	msg := decodeMessage(t, resp)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "ussd", msg.TransportName)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestInvalidBody(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/connectors/sms/inbound", bytes.NewReader([]byte(`{`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthz(t *testing.T) {
	r := setupRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector("test")
	gw, err := gatemesh.New(func(o *gatemesh.Options) {
		o.Clock = testutil.NewSequenceClock(1.0, 4.0)
		o.Recorder = collector
	})
	require.NoError(t, err)
	r := NewRouter(gw, nil, func(o *RouterOptions) { o.Metrics = collector.Handler() })

	require.Equal(t, http.StatusOK, post(t, r, "/connectors/sms/inbound", testutil.NewMessageBuilder().Build()).Code)
	require.Equal(t, http.StatusOK, post(t, r, "/connectors/sms/inbound", testutil.NewMessageBuilder().Close().Build()).Code)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `test_sessions_started_total{connector="sms",direction="inbound"} 1`)
	assert.Contains(t, body, `test_sessions_closed_total{connector="sms",direction="inbound",matched="true"} 1`)
	assert.Contains(t, body, `test_session_duration_seconds_sum{connector="sms"} 3`)
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	r := setupRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

type failingGateway struct{ err error }

func (f failingGateway) Inbound(context.Context, *core.Message, string) (*core.Message, error) {
	return nil, f.err
}

func (f failingGateway) Outbound(context.Context, *core.Message, string) (*core.Message, error) {
	return nil, f.err
}

func (f failingGateway) Session(context.Context, string, string) (middleware.SessionInfo, error) {
	return middleware.SessionInfo{}, f.err
}

func TestStoreFailureMapsToBadGateway(t *testing.T) {
	r := NewRouter(failingGateway{err: errors.New("dial tcp: connection refused")}, nil)

	resp := post(t, r, "/connectors/sms/outbound", testutil.NewMessageBuilder().Build())
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "connection refused")
}

func TestCorruptSessionRecordMapsToInternalError(t *testing.T) {
	err := fmt.Errorf("session length session: %w: %q at %s", middleware.ErrInvalidSessionRecord, "garbage", "sms:+1:session_created")
	r := NewRouter(failingGateway{err: err}, nil)

	resp := post(t, r, "/connectors/sms/inbound", testutil.NewMessageBuilder().Build())
	assert.Equal(t, http.StatusInternalServerError, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/connectors/sms/sessions/+1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
