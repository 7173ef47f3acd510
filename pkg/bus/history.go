package bus

import (
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// History keeps the most recent envelopes seen on the device topic.
type History struct {
	mu      sync.Mutex
	max     int
	entries []Envelope
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 100
	}
	return &History{max: max}
}

func (h *History) Register(b *Bus, name string) {
	b.AddHandler(name, TopicDeviceEvents, func(msg *message.Message) error {
		defer msg.Ack()
		env, err := DecodeEnvelope(msg.Payload)
		if err != nil {
			return err
		}
		h.Append(env)
		return nil
	})
}

func (h *History) Append(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, env)
	if len(h.entries) > h.max {
		h.entries = append([]Envelope{}, h.entries[len(h.entries)-h.max:]...)
	}
}

// Entries returns a copy, oldest first.
func (h *History) Entries() []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Envelope{}, h.entries...)
}
