//go:build linux && (arm || arm64)

package gpio

import (
	"github.com/pkg/errors"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

// OpenBoard maps the Raspberry Pi GPIO registers. Pin numbers are BCM numbers.
func OpenBoard(opts BoardOptions) (*Board, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "open rpio")
	}

	button := rpio.Pin(opts.ButtonPin)
	button.Input()
	if opts.Pull == PullDown {
		button.PullDown()
	} else {
		button.PullUp()
	}

	led := rpio.Pin(opts.LEDPin)
	led.Output()
	led.Low()

	return &Board{
		Button: rpioInput{pin: button},
		LED:    rpioOutput{pin: led},
		Pull:   opts.Pull,
		close: func() error {
			led.Low()
			return errors.Wrap(rpio.Close(), "close rpio")
		},
	}, nil
}

type rpioInput struct{ pin rpio.Pin }

func (p rpioInput) Read() Level {
	if p.pin.Read() == rpio.High {
		return High
	}
	return Low
}

type rpioOutput struct{ pin rpio.Pin }

func (p rpioOutput) Set(l Level) {
	if l == High {
		p.pin.High()
		return
	}
	p.pin.Low()
}
