package tui

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/pkg/errors"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

func RegisterUIForwarder(b *bus.Bus, p Sender) {
	b.AddHandler("bigredbutton-ui-forward", bus.TopicDeviceEvents, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := bus.DecodeEnvelope(msg.Payload)
		if err != nil {
			return errors.Wrap(err, "decode ui event")
		}
		p.Send(EventMsg{Entry: Describe(env)})
		return nil
	})
}

// Describe renders an event as a one-line log entry.
func Describe(env bus.Envelope) EventEntry {
	e := EventEntry{At: time.Now(), Type: env.Type, OK: true}

	switch env.Type {
	case bus.TypeConnectionChanged:
		var ev bus.ConnectionChanged
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, "link is "+ev.Status
		}
	case bus.TypeLinkEstablished:
		var ev bus.LinkEstablished
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, fmt.Sprintf("internal %s, external %s", ev.LocalAddress, ev.ExternalAddress)
		}
	case bus.TypeReadinessPolled:
		var ev bus.ReadinessPolled
		if env.Decode(&ev) == nil {
			e.At, e.OK = ev.At, ev.OK
			switch {
			case !ev.OK:
				e.Summary = fmt.Sprintf("poll failed (%s): %s", ev.ErrorKind, ev.Error)
			case ev.Ready:
				e.Summary = fmt.Sprintf("dev %s differs from prod %s", ev.DevBuild, ev.ProdBuild)
			default:
				e.Summary = fmt.Sprintf("nothing to deploy (dev %q, prod %q)", ev.DevBuild, ev.ProdBuild)
			}
		}
	case bus.TypeCandidatePublished:
		var ev bus.CandidatePublished
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, "ready to deploy "+ev.BuildID
		}
	case bus.TypeButtonChanged:
		var ev bus.ButtonChanged
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, "released"
			if ev.Pressed {
				e.Summary = "pressed"
			}
		}
	case bus.TypeDispatchStarted:
		var ev bus.DispatchStarted
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, fmt.Sprintf("deploying %s (%s)", ev.BuildID, ev.Source)
		}
	case bus.TypeDispatchFinished:
		var ev bus.DispatchFinished
		if env.Decode(&ev) == nil {
			e.At, e.OK = ev.At, ev.OK
			if ev.OK {
				e.Summary = fmt.Sprintf("deployed %s in %s", ev.BuildID, ev.Duration.Round(time.Millisecond))
			} else {
				e.Summary = fmt.Sprintf("deploy of %s failed: %s", ev.BuildID, ev.Error)
			}
		}
	case bus.TypeDispatchAbandoned:
		var ev bus.DispatchAbandoned
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, "abandoned: "+ev.Reason
		}
	case bus.TypeDispatchIgnored:
		var ev bus.DispatchIgnored
		if env.Decode(&ev) == nil {
			e.At, e.Summary = ev.At, "ignored: "+ev.Reason
		}
	case bus.TypeTaskFailed:
		var ev bus.TaskFailed
		if env.Decode(&ev) == nil {
			e.At, e.OK = ev.At, false
			e.Summary = fmt.Sprintf("%s failed: %s", ev.Task, ev.Error)
			if ev.Restarted {
				e.Summary += " (restarted)"
			}
		}
	}
	if e.Summary == "" {
		e.Summary = string(env.Payload)
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return e
}
