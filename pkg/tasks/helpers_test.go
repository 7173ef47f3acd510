package tasks

import (
	"sync"

	"github.com/go-go-golems/bigredbutton/pkg/gpio"
)

type recordingPin struct {
	mu     sync.Mutex
	levels []gpio.Level
}

func (p *recordingPin) Set(l gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = append(p.levels, l)
}

func (p *recordingPin) history() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level{}, p.levels...)
}

func (p *recordingPin) last() (gpio.Level, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.levels) == 0 {
		return gpio.Low, false
	}
	return p.levels[len(p.levels)-1], true
}
