package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/metrics"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *state.State, *bus.History) {
	t.Helper()
	st := state.New()
	h := bus.NewHistory(10)
	s, err := New(Options{State: st, History: h, Metrics: metrics.New()})
	require.NoError(t, err)
	return s, st, h
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_Status(t *testing.T) {
	s, st, _ := newTestServer(t)
	st.SetConnectionStatus(state.Connected)
	st.PublishCandidate("abc-123")
	st.SetAddresses("10.0.0.2", "203.0.113.7")

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "connected", body["connection"])
	require.Equal(t, "abc-123", body["candidate"])
	require.Equal(t, false, body["in_progress"])
	require.Equal(t, "203.0.113.7", body["external_address"])
}

func TestServer_Events(t *testing.T) {
	s, _, h := newTestServer(t)
	for i := 0; i < 3; i++ {
		env, err := bus.NewEnvelope(bus.TypeButtonChanged, bus.ButtonChanged{Pressed: i%2 == 0})
		require.NoError(t, err)
		h.Append(env)
	}

	rec := get(t, s.Handler(), "/events?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Events []bus.Envelope `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 2)

	rec = get(t, s.Handler(), "/events?limit=nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_MetricsCountRequests(t *testing.T) {
	s, _, _ := newTestServer(t)
	get(t, s.Handler(), "/healthz")
	get(t, s.Handler(), "/does-not-exist")

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `bigredbutton_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	require.Contains(t, body, `route="unmatched",status="404"`)
}

func TestNew_RequiresState(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && strings.Contains(string(b), "ok")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
