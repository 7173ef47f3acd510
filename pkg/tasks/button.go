package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ButtonMode string

const (
	// ModeIdle waits for a press.
	ModeIdle ButtonMode = "idle"
	// ModeWaiting holds the in-progress guard while pressed with no candidate.
	ModeWaiting ButtonMode = "waiting"
	// ModeDispatching has a deploy in flight.
	ModeDispatching ButtonMode = "dispatching"
	// ModeLatched has consumed the current press and waits for release.
	ModeLatched ButtonMode = "latched"
)

type ButtonOptions struct {
	Pull gpio.Pull
	// Interval between samples.
	Interval time.Duration
	// DebounceSamples is how many identical consecutive samples it takes
	// for the logical level to change.
	DebounceSamples int
}

// ButtonDispatcher turns button samples into deploys: one deploy per
// press-and-release, never two at once. Tick must only be called from one
// goroutine; deploys run on their own goroutine so sampling continues while
// the remote call is outstanding.
type ButtonDispatcher struct {
	button gpio.InputPin
	runner *DeployRunner
	state  *state.State
	events *bus.Emitter
	opts   ButtonOptions

	mode    ButtonMode
	pressed bool
	lastRaw bool
	stable  int

	done     chan error
	wg       sync.WaitGroup
	modeView atomic.Value
	deploys  atomic.Int64
}

func NewButtonDispatcher(button gpio.InputPin, runner *DeployRunner, events *bus.Emitter, opts ButtonOptions) *ButtonDispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	if opts.DebounceSamples <= 0 {
		opts.DebounceSamples = 1
	}
	d := &ButtonDispatcher{
		button: button,
		runner: runner,
		state:  runner.State,
		events: events,
		opts:   opts,
		done:   make(chan error, 1),
	}
	d.setMode(ModeIdle)
	return d
}

func (d *ButtonDispatcher) Mode() ButtonMode {
	return d.modeView.Load().(ButtonMode)
}

// Dispatches counts deploys started by the button.
func (d *ButtonDispatcher) Dispatches() int64 {
	return d.deploys.Load()
}

func (d *ButtonDispatcher) Run(ctx context.Context) error {
	if d.button == nil {
		return errors.New("missing button")
	}
	defer d.stop()

	t := time.NewTicker(d.opts.Interval)
	defer t.Stop()

	for {
		d.Tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Tick samples the button once and advances the state machine.
func (d *ButtonDispatcher) Tick(ctx context.Context) {
	d.collect()

	pressed, changed := d.sample()
	if changed {
		log.Debug().Bool("pressed", pressed).Msg("button changed")
		d.events.Emit(bus.TypeButtonChanged, bus.ButtonChanged{Pressed: pressed, At: time.Now()})
	}

	switch d.mode {
	case ModeIdle:
		if pressed {
			d.arm(ctx)
		}
	case ModeWaiting:
		if !pressed {
			d.state.EndDispatch()
			d.setMode(ModeIdle)
			log.Info().Msg("button released before a build was ready; press abandoned")
			d.events.Emit(bus.TypeDispatchAbandoned, bus.DispatchAbandoned{Reason: "released without candidate", At: time.Now()})
			return
		}
		if id, ok := d.state.Candidate(); ok {
			d.dispatch(ctx, id)
		}
	case ModeDispatching:
	case ModeLatched:
		if !pressed {
			d.setMode(ModeIdle)
		}
	}
}

// Wait blocks until the in-flight deploy, if any, has finished.
func (d *ButtonDispatcher) Wait() {
	d.wg.Wait()
}

func (d *ButtonDispatcher) arm(ctx context.Context) {
	if !d.state.TryBeginDispatch() {
		log.Warn().Msg("button pressed while a deploy is in progress; ignoring")
		d.events.Emit(bus.TypeDispatchIgnored, bus.DispatchIgnored{Reason: "deploy in progress", At: time.Now()})
		d.setMode(ModeLatched)
		return
	}
	id, ok := d.state.Candidate()
	if !ok {
		log.Info().Msg("button pressed but no build is ready; waiting while held")
		d.setMode(ModeWaiting)
		return
	}
	d.dispatch(ctx, id)
}

func (d *ButtonDispatcher) dispatch(ctx context.Context, buildID string) {
	d.setMode(ModeDispatching)
	d.deploys.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.deploy(ctx, buildID)
		d.state.EndDispatch()
		d.done <- err
	}()
}

func (d *ButtonDispatcher) deploy(ctx context.Context, buildID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("deploy panicked: %v", r)
			log.Error().Err(err).Str("build", buildID).Msg("deploy panicked")
		}
	}()
	_, err = d.runner.Deploy(ctx, buildID, SourceButton)
	return err
}

func (d *ButtonDispatcher) collect() {
	select {
	case <-d.done:
		if d.pressed {
			d.setMode(ModeLatched)
		} else {
			d.setMode(ModeIdle)
		}
	default:
	}
}

func (d *ButtonDispatcher) sample() (pressed bool, changed bool) {
	raw := d.button.Read() == d.opts.Pull.PressedLevel()
	if raw == d.lastRaw {
		if d.stable < d.opts.DebounceSamples {
			d.stable++
		}
	} else {
		d.lastRaw = raw
		d.stable = 1
	}
	if d.stable >= d.opts.DebounceSamples && raw != d.pressed {
		d.pressed = raw
		return raw, true
	}
	return d.pressed, false
}

func (d *ButtonDispatcher) stop() {
	d.wg.Wait()
	d.collect()
	if d.mode == ModeWaiting {
		d.state.EndDispatch()
		d.setMode(ModeIdle)
	}
}

func (d *ButtonDispatcher) setMode(m ButtonMode) {
	d.mode = m
	d.modeView.Store(m)
}
