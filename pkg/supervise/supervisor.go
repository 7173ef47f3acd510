package supervise

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/go-go-golems/bigredbutton/pkg/tasks"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	SSID                string
	Password            string
	ProductionChannelID string

	ConnectionInterval time.Duration
	PollInterval       time.Duration
	ButtonInterval     time.Duration
	LEDInterval        time.Duration
	DebounceSamples    int

	JoinTimeout    time.Duration
	JoinRetry      time.Duration
	RequestTimeout time.Duration
	DeployTimeout  time.Duration
	RestartDelay   time.Duration

	// Rearm starts a fresh readiness tracker after every successful deploy.
	Rearm bool
}

type Deps struct {
	Joiner netlink.Joiner
	Prober netlink.Prober
	Client appflow.Client
	Board  *gpio.Board
	Events *bus.Emitter
}

// Supervisor owns the shared device state and runs every device task until
// its context ends. A failing task never takes the process down.
type Supervisor struct {
	opts Options
	deps Deps

	state      *state.State
	runner     *tasks.DeployRunner
	dispatcher *tasks.ButtonDispatcher
	deployed   chan string

	monitorOnce sync.Once
}

func New(opts Options, deps Deps) (*Supervisor, error) {
	if deps.Joiner == nil {
		return nil, errors.New("missing Joiner")
	}
	if deps.Prober == nil {
		return nil, errors.New("missing Prober")
	}
	if deps.Client == nil {
		return nil, errors.New("missing Client")
	}
	if deps.Board == nil || deps.Board.Button == nil || deps.Board.LED == nil {
		return nil, errors.New("missing board pins")
	}
	if opts.ProductionChannelID == "" {
		return nil, errors.New("missing ProductionChannelID")
	}
	if opts.ConnectionInterval <= 0 {
		opts.ConnectionInterval = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ButtonInterval <= 0 {
		opts.ButtonInterval = 50 * time.Millisecond
	}
	if opts.LEDInterval <= 0 {
		opts.LEDInterval = 500 * time.Millisecond
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 30 * time.Second
	}
	if opts.JoinRetry <= 0 {
		opts.JoinRetry = 5 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.DeployTimeout <= 0 {
		opts.DeployTimeout = 30 * time.Second
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 1 * time.Second
	}

	s := &Supervisor{
		opts:     opts,
		deps:     deps,
		state:    state.New(),
		deployed: make(chan string, 1),
	}
	s.runner = &tasks.DeployRunner{
		Client:    deps.Client,
		ChannelID: opts.ProductionChannelID,
		State:     s.state,
		Events:    deps.Events,
		Timeout:   opts.DeployTimeout,
		OnDeployed: func(buildID string) {
			select {
			case s.deployed <- buildID:
			default:
			}
		},
	}
	s.dispatcher = tasks.NewButtonDispatcher(deps.Board.Button, s.runner, deps.Events, tasks.ButtonOptions{
		Pull:            deps.Board.Pull,
		Interval:        opts.ButtonInterval,
		DebounceSamples: opts.DebounceSamples,
	})
	return s, nil
}

func (s *Supervisor) State() *state.State { return s.state }

func (s *Supervisor) Dispatcher() *tasks.ButtonDispatcher { return s.dispatcher }

// Run starts every task and blocks until ctx is cancelled and the tasks and
// any in-flight deploy have stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	indicator := &tasks.StatusIndicator{LED: s.deps.Board.LED, State: s.state, Interval: s.opts.LEDInterval}
	s.spawn(egCtx, eg, "indicator", indicator.Run)
	s.spawn(egCtx, eg, "button", s.dispatcher.Run)
	s.spawn(egCtx, eg, "link", func(ctx context.Context) error {
		return s.runLink(ctx, eg)
	})
	log.Info().Msg("welcome; device tasks started")

	err := eg.Wait()
	s.dispatcher.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("device tasks stopped")
	return nil
}

func (s *Supervisor) runLink(ctx context.Context, eg *errgroup.Group) error {
	link, err := s.join(ctx)
	if err != nil {
		return err
	}

	s.monitorOnce.Do(func() {
		monitor := &tasks.ConnectionMonitor{Link: link, State: s.state, Interval: s.opts.ConnectionInterval, Events: s.deps.Events}
		s.spawn(ctx, eg, "connection-monitor", monitor.Run)
	})

	external, err := s.probe(ctx)
	if err != nil {
		return err
	}
	local := link.LocalAddress()
	s.state.SetAddresses(local, external)
	log.Info().Str("internal", local).Str("external", external).Msg("link established")
	s.deps.Events.Emit(bus.TypeLinkEstablished, bus.LinkEstablished{LocalAddress: local, ExternalAddress: external, At: time.Now()})

	return s.runReadiness(ctx)
}

func (s *Supervisor) join(ctx context.Context) (netlink.Link, error) {
	for {
		s.setConnection(state.Connecting)
		log.Info().Str("ssid", s.opts.SSID).Msg("joining network")

		jctx, cancel := context.WithTimeout(ctx, s.opts.JoinTimeout)
		link, err := s.deps.Joiner.Connect(jctx, s.opts.SSID, s.opts.Password)
		cancel()
		if err == nil {
			return link, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.setConnection(state.NotConnected)
		log.Warn().Err(err).Dur("retry_in", s.opts.JoinRetry).Msg("join failed")
		if err := sleep(ctx, s.opts.JoinRetry); err != nil {
			return nil, err
		}
	}
}

func (s *Supervisor) probe(ctx context.Context) (string, error) {
	for {
		pctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		addr, err := s.deps.Prober.ExternalAddress(pctx)
		cancel()
		if err == nil {
			return addr, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn().Err(err).Dur("retry_in", s.opts.JoinRetry).Msg("external address probe failed")
		if err := sleep(ctx, s.opts.JoinRetry); err != nil {
			return "", err
		}
	}
}

func (s *Supervisor) runReadiness(ctx context.Context) error {
	for {
		tracker := &tasks.ReadinessTracker{
			Client:         s.deps.Client,
			State:          s.state,
			Interval:       s.opts.PollInterval,
			RequestTimeout: s.opts.RequestTimeout,
			Events:         s.deps.Events,
		}
		if _, err := tracker.Run(ctx); err != nil {
			return err
		}
		if !s.opts.Rearm {
			log.Info().Msg("readiness tracker done; not re-arming")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case buildID := <-s.deployed:
			log.Info().Str("build", buildID).Msg("deploy finished; re-arming readiness tracker")
		}
	}
}

func (s *Supervisor) setConnection(st state.ConnectionStatus) {
	if s.state.SetConnectionStatus(st) {
		s.deps.Events.Emit(bus.TypeConnectionChanged, bus.ConnectionChanged{Status: st.String(), At: time.Now()})
	}
}

// PanicError is what a task that panicked is reported as.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// spawn runs fn on eg behind a guard. Panics are recovered and the task is
// restarted after RestartDelay; an error stops only that task. The guard
// never returns an error, so one task cannot cancel the others.
func (s *Supervisor) spawn(ctx context.Context, eg *errgroup.Group, name string, fn func(context.Context) error) {
	eg.Go(func() error {
		for {
			err := runRecovered(ctx, name, fn)
			if ctx.Err() != nil {
				return nil
			}

			var pe *PanicError
			switch {
			case errors.As(err, &pe):
				log.Error().Err(err).Str("task", name).Str("stack", string(pe.Stack)).Msg("task panicked; restarting")
				s.deps.Events.Emit(bus.TypeTaskFailed, bus.TaskFailed{Task: name, Error: err.Error(), Panicked: true, Restarted: true, At: time.Now()})
				if err := sleep(ctx, s.opts.RestartDelay); err != nil {
					return nil
				}
			case err != nil:
				log.Error().Err(err).Str("task", name).Msg("task failed; stopping it")
				s.deps.Events.Emit(bus.TypeTaskFailed, bus.TaskFailed{Task: name, Error: err.Error(), At: time.Now()})
				return nil
			default:
				log.Debug().Str("task", name).Msg("task finished")
				return nil
			}
		}
	})
}

func runRecovered(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: name, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
