package supervise

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/appflow/appflowtest"
	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/go-go-golems/bigredbutton/pkg/tasks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc    *appflowtest.Service
	link   *netlink.SimLink
	joiner netlink.Joiner
	prober netlink.Prober
	button *gpio.SimButton
	led    *gpio.SimPin
	board  *gpio.Board
}

func newHarness() *harness {
	board, button, led := gpio.NewSimBoard(gpio.PullUp)
	link := netlink.NewSimLink("10.0.0.2", false)
	return &harness{
		svc:    appflowtest.New(),
		link:   link,
		joiner: &netlink.SimJoiner{Link: link},
		prober: netlink.StaticProber{Address: "203.0.113.7"},
		button: button,
		led:    led,
		board:  board,
	}
}

func fastOptions() Options {
	return Options{
		SSID:                "office",
		ProductionChannelID: appflowtest.ProductionChannelID,
		ConnectionInterval:  5 * time.Millisecond,
		PollInterval:        5 * time.Millisecond,
		ButtonInterval:      2 * time.Millisecond,
		LEDInterval:         4 * time.Millisecond,
		JoinRetry:           5 * time.Millisecond,
		RestartDelay:        5 * time.Millisecond,
		DeployTimeout:       time.Second,
		RequestTimeout:      time.Second,
		Rearm:               true,
	}
}

func (h *harness) start(t *testing.T, opts Options) (*Supervisor, func()) {
	t.Helper()
	s, err := New(opts, Deps{Joiner: h.joiner, Prober: h.prober, Client: h.svc, Board: h.board})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	return s, func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("supervisor did not stop")
		}
	}
}

func TestNew_ValidatesDeps(t *testing.T) {
	h := newHarness()
	_, err := New(fastOptions(), Deps{Prober: h.prober, Client: h.svc, Board: h.board})
	require.Error(t, err)
	_, err = New(fastOptions(), Deps{Joiner: h.joiner, Prober: h.prober, Client: h.svc})
	require.Error(t, err)

	opts := fastOptions()
	opts.ProductionChannelID = ""
	_, err = New(opts, Deps{Joiner: h.joiner, Prober: h.prober, Client: h.svc, Board: h.board})
	require.Error(t, err)
}

func TestSupervisor_PressDeploysCandidate(t *testing.T) {
	h := newHarness()
	h.svc.SetProduction("prod-1")
	h.svc.Promote("dev-2")

	s, stop := h.start(t, fastOptions())
	defer stop()

	require.Eventually(t, func() bool {
		return s.State().ConnectionStatus() == state.Connected
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		id, ok := s.State().Candidate()
		return ok && id == "dev-2"
	}, 2*time.Second, 5*time.Millisecond)

	snap := s.State().Snapshot()
	require.Equal(t, "10.0.0.2", snap.LocalAddress)
	require.Equal(t, "203.0.113.7", snap.ExternalAddress)

	h.button.Press()
	require.Eventually(t, func() bool { return len(h.svc.Deploys()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.State().InProgress() }, 2*time.Second, 5*time.Millisecond)

	// Holding the button never deploys twice.
	time.Sleep(30 * time.Millisecond)
	require.Len(t, h.svc.Deploys(), 1)
	require.Equal(t, "dev-2", h.svc.Deploys()[0].BuildID)
	require.Equal(t, appflowtest.ProductionChannelID, h.svc.Deploys()[0].ChannelID)

	rec, ok := s.State().LastDeploy()
	require.True(t, ok)
	require.True(t, rec.OK)
	h.button.Release()
}

func TestSupervisor_RearmsAfterDeploy(t *testing.T) {
	h := newHarness()
	h.svc.SetProduction("prod-1")
	h.svc.Promote("dev-2")

	s, stop := h.start(t, fastOptions())
	defer stop()

	require.Eventually(t, func() bool {
		_, ok := s.State().Candidate()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	h.button.Press()
	require.Eventually(t, func() bool { return len(h.svc.Deploys()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.button.Release()

	h.svc.Promote("dev-3")
	require.Eventually(t, func() bool {
		id, ok := s.State().Candidate()
		return ok && id == "dev-3"
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return s.Dispatcher().Mode() == tasks.ModeIdle }, 2*time.Second, 5*time.Millisecond)
	h.button.Press()
	require.Eventually(t, func() bool { return len(h.svc.Deploys()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "dev-3", h.svc.Deploys()[1].BuildID)
}

func TestSupervisor_WithoutRearmReadyIsTerminal(t *testing.T) {
	h := newHarness()
	h.svc.SetProduction("prod-1")
	h.svc.Promote("dev-2")

	opts := fastOptions()
	opts.Rearm = false
	s, stop := h.start(t, opts)
	defer stop()

	require.Eventually(t, func() bool {
		_, ok := s.State().Candidate()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	h.button.Press()
	require.Eventually(t, func() bool { return len(h.svc.Deploys()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.button.Release()

	h.svc.Promote("dev-3")
	time.Sleep(50 * time.Millisecond)
	_, ok := s.State().Candidate()
	require.False(t, ok)
}

func TestSupervisor_RetriesJoinAndProbe(t *testing.T) {
	h := newHarness()
	joiner := &netlink.SimJoiner{Link: h.link, Failures: 3}
	h.joiner = joiner
	h.prober = &flakyProber{failures: 2, addr: "198.51.100.1"}

	s, stop := h.start(t, fastOptions())
	defer stop()

	require.Eventually(t, func() bool {
		return s.State().Snapshot().ExternalAddress == "198.51.100.1"
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 4, joiner.Attempts())
	require.Equal(t, state.Connected, s.State().ConnectionStatus())
}

func TestSupervisor_LEDFollowsConnection(t *testing.T) {
	h := newHarness()
	h.joiner = &netlink.SimJoiner{Link: h.link, Delay: time.Hour}

	s, stop := h.start(t, fastOptions())
	defer stop()

	require.Eventually(t, func() bool {
		return s.State().ConnectionStatus() == state.Connecting
	}, time.Second, 2*time.Millisecond)

	// CONNECTING blinks, so the LED must be seen both on and off.
	var sawOn, sawOff bool
	require.Eventually(t, func() bool {
		if h.led.Read() == gpio.High {
			sawOn = true
		} else {
			sawOff = true
		}
		return sawOn && sawOff
	}, time.Second, time.Millisecond)
}

func TestSupervisor_RestartsPanickingTask(t *testing.T) {
	h := newHarness()
	h.svc.SetProduction("prod-1")
	h.svc.Promote("dev-2")
	pj := &panicOnceJoiner{next: &netlink.SimJoiner{Link: h.link}}
	h.joiner = pj

	s, stop := h.start(t, fastOptions())
	defer stop()

	require.Eventually(t, func() bool {
		_, ok := s.State().Candidate()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 2, pj.calls.Load())
}

func TestSupervisor_ReadFailuresDoNotStopPolling(t *testing.T) {
	h := newHarness()
	h.svc.SetProduction("prod-1")
	h.svc.Promote("dev-2")
	h.svc.FailLists(&appflow.Failure{Kind: appflow.KindTransient, Op: "list", Err: errors.New("offline")})

	s, stop := h.start(t, fastOptions())
	defer stop()

	time.Sleep(30 * time.Millisecond)
	_, ok := s.State().Candidate()
	require.False(t, ok)

	h.svc.FailLists(nil)
	require.Eventually(t, func() bool {
		_, ok := s.State().Candidate()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

type flakyProber struct {
	failures int32
	addr     string
	calls    atomic.Int32
}

func (p *flakyProber) ExternalAddress(ctx context.Context) (string, error) {
	if p.calls.Add(1) <= p.failures {
		return "", errors.New("probe unreachable")
	}
	return p.addr, nil
}

type panicOnceJoiner struct {
	next  netlink.Joiner
	calls atomic.Int32
}

func (j *panicOnceJoiner) Connect(ctx context.Context, ssid, password string) (netlink.Link, error) {
	if j.calls.Add(1) == 1 {
		panic("radio driver exploded")
	}
	return j.next.Connect(ctx, ssid, password)
}
