package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/stretchr/testify/require"
)

func TestConnectionMonitor_SampleFollowsLink(t *testing.T) {
	link := netlink.NewSimLink("10.0.0.2", false)
	st := state.New()
	st.SetConnectionStatus(state.Connecting)
	m := &ConnectionMonitor{Link: link, State: st}

	require.Equal(t, state.NotConnected, m.Sample())
	require.Equal(t, state.NotConnected, st.ConnectionStatus())

	link.SetConnected(true)
	require.Equal(t, state.Connected, m.Sample())
	require.Equal(t, state.Connected, st.ConnectionStatus())

	link.SetConnected(false)
	require.Equal(t, state.NotConnected, m.Sample())
}

func TestConnectionMonitor_RunStopsWithContext(t *testing.T) {
	link := netlink.NewSimLink("", true)
	st := state.New()
	m := &ConnectionMonitor{Link: link, State: st, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return st.ConnectionStatus() == state.Connected }, time.Second, 5*time.Millisecond)
	link.SetConnected(false)
	require.Eventually(t, func() bool { return st.ConnectionStatus() == state.NotConnected }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestConnectionMonitor_RequiresLink(t *testing.T) {
	m := &ConnectionMonitor{State: state.New()}
	require.Error(t, m.Run(context.Background()))
}
