package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Emitter publishes domain events on TopicDeviceEvents. A nil *Emitter drops
// everything, so tasks can run without a bus.
type Emitter struct {
	pub message.Publisher
}

func NewEmitter(pub message.Publisher) *Emitter {
	if pub == nil {
		return nil
	}
	return &Emitter{pub: pub}
}

func (e *Emitter) Publish(typ string, payload any) error {
	if e == nil {
		return nil
	}
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	b, err := env.MarshalJSONBytes()
	if err != nil {
		return err
	}
	if err := e.pub.Publish(TopicDeviceEvents, message.NewMessage(watermill.NewUUID(), b)); err != nil {
		return errors.Wrapf(err, "publish %s", typ)
	}
	return nil
}

// Emit is Publish for callers that cannot act on a failed publish.
func (e *Emitter) Emit(typ string, payload any) {
	if err := e.Publish(typ, payload); err != nil {
		log.Warn().Err(err).Str("event", typ).Msg("dropping event")
	}
}
