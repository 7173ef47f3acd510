package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, typ string, payload any) bus.Envelope {
	t.Helper()
	env, err := bus.NewEnvelope(typ, payload)
	require.NoError(t, err)
	return env
}

func TestRecorder_Observe(t *testing.T) {
	r := New()

	r.Observe(envelope(t, bus.TypeConnectionChanged, bus.ConnectionChanged{Status: "connected"}))
	require.Equal(t, float64(2), testutil.ToFloat64(r.connection))

	r.Observe(envelope(t, bus.TypeReadinessPolled, bus.ReadinessPolled{OK: true, LatestNumber: 42}))
	r.Observe(envelope(t, bus.TypeReadinessPolled, bus.ReadinessPolled{ErrorKind: "transient", Error: "boom"}))
	r.Observe(envelope(t, bus.TypeReadinessPolled, bus.ReadinessPolled{OK: true, Ready: true}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.polls.WithLabelValues("not_ready")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.polls.WithLabelValues("transient")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.polls.WithLabelValues("ready")))
	require.Equal(t, float64(42), testutil.ToFloat64(r.latestBuild))

	r.Observe(envelope(t, bus.TypeCandidatePublished, bus.CandidatePublished{BuildID: "abc-123"}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.candidate))

	r.Observe(envelope(t, bus.TypeButtonChanged, bus.ButtonChanged{Pressed: true}))
	r.Observe(envelope(t, bus.TypeButtonChanged, bus.ButtonChanged{Pressed: false}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.presses))

	r.Observe(envelope(t, bus.TypeDispatchFinished, bus.DispatchFinished{Source: "button", OK: false, Duration: time.Second}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.candidate))
	r.Observe(envelope(t, bus.TypeDispatchFinished, bus.DispatchFinished{Source: "button", OK: true, Duration: time.Second}))
	require.Equal(t, float64(0), testutil.ToFloat64(r.candidate))
	require.Equal(t, float64(1), testutil.ToFloat64(r.deploys.WithLabelValues("button", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.deploys.WithLabelValues("button", "failed")))

	r.Observe(envelope(t, bus.TypeDispatchAbandoned, bus.DispatchAbandoned{Reason: "released"}))
	r.Observe(envelope(t, bus.TypeDispatchIgnored, bus.DispatchIgnored{Reason: "busy"}))
	r.Observe(envelope(t, bus.TypeTaskFailed, bus.TaskFailed{Task: "link", Panicked: true}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.abandoned))
	require.Equal(t, float64(1), testutil.ToFloat64(r.ignored))
	require.Equal(t, float64(1), testutil.ToFloat64(r.taskFailures.WithLabelValues("link", "true")))
}

func TestRecorder_IgnoresGarbage(t *testing.T) {
	r := New()
	r.Observe(envelope(t, bus.TypeConnectionChanged, bus.ConnectionChanged{Status: "sideways"}))
	r.Observe(bus.Envelope{Type: bus.TypeDispatchFinished})
	r.Observe(bus.Envelope{Type: "something.else"})
	require.Equal(t, float64(0), testutil.ToFloat64(r.connection))
}

func TestRecorder_ConsumesBus(t *testing.T) {
	b, err := bus.NewInMemoryBus()
	require.NoError(t, err)
	r := New()
	r.Register(b, "metrics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()
	<-b.Running()

	em := bus.NewEmitter(b.Publisher)
	em.Emit(bus.TypeDispatchIgnored, bus.DispatchIgnored{Reason: "busy"})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.ignored) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRequest("GET", "/status", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `bigredbutton_http_requests_total{method="GET",route="/status",status="200"} 1`))
	require.True(t, strings.Contains(string(body), "bigredbutton_connection_status"))
}
