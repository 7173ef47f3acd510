package tasks

import (
	"context"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ConnectionMonitor republishes the link's connectivity into the shared
// state on every tick.
type ConnectionMonitor struct {
	Link     netlink.Link
	State    *state.State
	Interval time.Duration
	Events   *bus.Emitter
}

func (m *ConnectionMonitor) Run(ctx context.Context) error {
	if m.Link == nil {
		return errors.New("missing Link")
	}
	if m.State == nil {
		return errors.New("missing State")
	}
	if m.Interval <= 0 {
		m.Interval = 500 * time.Millisecond
	}

	t := time.NewTicker(m.Interval)
	defer t.Stop()

	for {
		m.Sample()

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Sample reads the link once and stores the result.
func (m *ConnectionMonitor) Sample() state.ConnectionStatus {
	st := state.NotConnected
	if m.Link.IsConnected() {
		st = state.Connected
	}
	if m.State.SetConnectionStatus(st) {
		log.Info().Str("status", st.String()).Msg("connection status changed")
		m.Events.Emit(bus.TypeConnectionChanged, bus.ConnectionChanged{Status: st.String(), At: time.Now()})
	}
	return st
}
