package tasks

import (
	"context"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/pkg/errors"
)

type Phase struct {
	Level    gpio.Level
	Duration time.Duration
}

// Pattern maps a connection status to one LED cycle of length interval.
func Pattern(status state.ConnectionStatus, interval time.Duration) []Phase {
	switch status {
	case state.Connected:
		return []Phase{{Level: gpio.High, Duration: interval}}
	case state.Connecting:
		half := interval / 2
		return []Phase{
			{Level: gpio.High, Duration: half},
			{Level: gpio.Low, Duration: interval - half},
		}
	default:
		return []Phase{{Level: gpio.Low, Duration: interval}}
	}
}

type StatusIndicator struct {
	LED      gpio.OutputPin
	State    *state.State
	Interval time.Duration
}

func (i *StatusIndicator) Run(ctx context.Context) error {
	if i.LED == nil {
		return errors.New("missing LED")
	}
	if i.State == nil {
		return errors.New("missing State")
	}
	defer i.LED.Set(gpio.Low)

	for {
		if err := i.Cycle(ctx); err != nil {
			return nil
		}
	}
}

// Cycle renders one pattern for the status read at its start.
func (i *StatusIndicator) Cycle(ctx context.Context) error {
	interval := i.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for _, p := range Pattern(i.State.ConnectionStatus(), interval) {
		i.LED.Set(p.Level)
		if err := sleep(ctx, p.Duration); err != nil {
			return err
		}
	}
	return nil
}
