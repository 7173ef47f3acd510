package netlink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeExternalAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ip", r.URL.Path)
		_, _ = io.WriteString(w, `{"origin": "203.0.113.7"}`)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL + "/ip"}
	addr, err := p.ExternalAddress(context.Background())
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", addr)
}

func TestProbeExternalAddress_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ip": "nope"}`)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}
	_, err := ProbeExternalAddress(context.Background(), client, srv.URL+"/down")
	require.Error(t, err)
	_, err = ProbeExternalAddress(context.Background(), client, srv.URL+"/ip")
	require.Error(t, err)
}

func TestSimJoiner_FailsThenConnects(t *testing.T) {
	link := NewSimLink("10.0.0.2", false)
	j := &SimJoiner{Link: link, Failures: 2}

	_, err := j.Connect(context.Background(), "office", "pw")
	require.Error(t, err)
	_, err = j.Connect(context.Background(), "office", "pw")
	require.Error(t, err)

	l, err := j.Connect(context.Background(), "office", "pw")
	require.NoError(t, err)
	require.True(t, l.IsConnected())
	require.Equal(t, "10.0.0.2", l.LocalAddress())
	require.Equal(t, 3, j.Attempts())
}

func TestSimJoiner_RespectsContext(t *testing.T) {
	j := &SimJoiner{Link: NewSimLink("", false), Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := j.Connect(ctx, "office", "pw")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimLink_Toggle(t *testing.T) {
	l := NewSimLink("", false)
	require.True(t, l.Toggle())
	require.True(t, l.IsConnected())
	require.False(t, l.Toggle())
	require.False(t, l.IsConnected())
}

func TestHostJoiner_UnknownInterfaceTimesOut(t *testing.T) {
	j := &HostJoiner{Interface: "does-not-exist0", PollInterval: 10 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := j.Connect(ctx, "office", "pw")
	require.Error(t, err)
}
