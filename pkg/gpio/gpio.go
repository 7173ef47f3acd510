// Package gpio models the device's two digital lines: the deploy button
// (input) and the status LED (active-high output).
package gpio

import (
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Pull is the resistor configuration of the button line. The button pulls the
// line to the opposite level when pressed.
type Pull uint8

const (
	PullUp Pull = iota
	PullDown
)

func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	default:
		return PullUp, errors.Errorf("unknown pull %q (want up|down)", s)
	}
}

func (p Pull) String() string {
	if p == PullDown {
		return "down"
	}
	return "up"
}

func (p Pull) IdleLevel() Level {
	if p == PullDown {
		return Low
	}
	return High
}

func (p Pull) PressedLevel() Level {
	if p == PullDown {
		return High
	}
	return Low
}

type InputPin interface {
	Read() Level
}

type OutputPin interface {
	Set(Level)
}

// SimPin is an in-memory line usable as either input or output.
type SimPin struct {
	level atomic.Uint32
	sets  atomic.Uint64
}

var (
	_ InputPin  = (*SimPin)(nil)
	_ OutputPin = (*SimPin)(nil)
)

func NewSimPin(initial Level) *SimPin {
	p := &SimPin{}
	p.level.Store(uint32(initial))
	return p
}

func (p *SimPin) Read() Level { return Level(p.level.Load()) }

func (p *SimPin) Set(l Level) {
	p.level.Store(uint32(l))
	p.sets.Add(1)
}

// Toggle flips the level and returns the new one.
func (p *SimPin) Toggle() Level {
	for {
		cur := p.level.Load()
		next := uint32(High)
		if Level(cur) == High {
			next = uint32(Low)
		}
		if p.level.CompareAndSwap(cur, next) {
			p.sets.Add(1)
			return Level(next)
		}
	}
}

// Writes counts Set and Toggle calls.
func (p *SimPin) Writes() uint64 { return p.sets.Load() }

// SimButton is a SimPin wired as a button with the given pull.
type SimButton struct {
	*SimPin
	pull Pull
}

func NewSimButton(pull Pull) *SimButton {
	return &SimButton{SimPin: NewSimPin(pull.IdleLevel()), pull: pull}
}

func (b *SimButton) Press()   { b.Set(b.pull.PressedLevel()) }
func (b *SimButton) Release() { b.Set(b.pull.IdleLevel()) }

func (b *SimButton) Pressed() bool { return b.Read() == b.pull.PressedLevel() }

// Board groups the lines the device uses.
type Board struct {
	Button InputPin
	LED    OutputPin
	Pull   Pull
	close  func() error
}

func (b *Board) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

type BoardOptions struct {
	ButtonPin int
	LEDPin    int
	Pull      Pull
}

// NewSimBoard returns a board backed by in-memory pins.
func NewSimBoard(pull Pull) (*Board, *SimButton, *SimPin) {
	button := NewSimButton(pull)
	led := NewSimPin(Low)
	return &Board{Button: button, LED: led, Pull: pull}, button, led
}
