package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Readiness is the outcome of comparing the Development and Production
// channels. Empty build ids mean no build is bound.
type Readiness struct {
	DevBuild     string `json:"dev_build,omitempty"`
	ProdBuild    string `json:"prod_build,omitempty"`
	LatestNumber int64  `json:"latest_number,omitempty"`
	Ready        bool   `json:"ready"`
}

// EvaluateReadiness is ready only when both channels have a build and the
// builds differ.
func EvaluateReadiness(channels []appflow.Channel) Readiness {
	var r Readiness
	if dev, ok := appflow.FindChannel(channels, appflow.ChannelDevelopment); ok {
		r.DevBuild, _ = dev.Build()
	}
	if prod, ok := appflow.FindChannel(channels, appflow.ChannelProduction); ok {
		r.ProdBuild, _ = prod.Build()
	}
	r.Ready = r.DevBuild != "" && r.ProdBuild != "" && r.DevBuild != r.ProdBuild
	return r
}

// ReadinessTracker polls until a deployable build shows up, publishes it as
// the deploy candidate and stops. A tracker is single-use: once Ready it
// never polls again.
type ReadinessTracker struct {
	Client         appflow.Client
	State          *state.State
	Interval       time.Duration
	RequestTimeout time.Duration
	Events         *bus.Emitter

	mu    sync.Mutex
	ready bool
	last  Readiness
}

func (t *ReadinessTracker) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Poll runs one iteration. Both listings must succeed for the iteration to
// count; a failure leaves the tracker Polling. Poll is not meant to be called
// concurrently with itself.
func (t *ReadinessTracker) Poll(ctx context.Context) (Readiness, error) {
	t.mu.Lock()
	if t.ready {
		last := t.last
		t.mu.Unlock()
		return last, nil
	}
	t.mu.Unlock()

	pctx := ctx
	if t.RequestTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, t.RequestTimeout)
		defer cancel()
	}

	builds, err := t.Client.ListBuilds(pctx)
	if err != nil {
		return Readiness{}, t.failed(errors.Wrap(err, "list builds"))
	}
	channels, err := t.Client.ListChannels(pctx)
	if err != nil {
		return Readiness{}, t.failed(errors.Wrap(err, "list channels"))
	}

	r := EvaluateReadiness(channels)
	if len(builds) > 0 {
		r.LatestNumber = builds[0].Number
	}
	now := time.Now()
	if r.Ready {
		// the candidate is in the shared slot before anyone can observe Ready
		t.State.PublishCandidate(r.DevBuild)
		t.mu.Lock()
		t.ready = true
		t.last = r
		t.mu.Unlock()
		t.Events.Emit(bus.TypeCandidatePublished, bus.CandidatePublished{BuildID: r.DevBuild, ProdBuild: r.ProdBuild, At: now})
	}
	t.Events.Emit(bus.TypeReadinessPolled, bus.ReadinessPolled{
		OK:           true,
		DevBuild:     r.DevBuild,
		ProdBuild:    r.ProdBuild,
		LatestNumber: r.LatestNumber,
		Ready:        r.Ready,
		At:           now,
	})
	return r, nil
}

func (t *ReadinessTracker) failed(err error) error {
	t.Events.Emit(bus.TypeReadinessPolled, bus.ReadinessPolled{
		ErrorKind: string(appflow.KindOf(err)),
		Error:     err.Error(),
		At:        time.Now(),
	})
	return err
}

// Run polls every Interval until a candidate is published or ctx ends. It
// returns the published build id.
func (t *ReadinessTracker) Run(ctx context.Context) (string, error) {
	if t.Client == nil {
		return "", errors.New("missing Client")
	}
	if t.State == nil {
		return "", errors.New("missing State")
	}
	if t.Interval <= 0 {
		t.Interval = 5 * time.Second
	}

	for {
		r, err := t.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			log.Warn().Err(err).Str("kind", string(appflow.KindOf(err))).Msg("readiness poll failed; retrying")
		case r.Ready:
			log.Info().Str("dev_build", r.DevBuild).Str("prod_build", r.ProdBuild).Msg("ready to deploy")
			return r.DevBuild, nil
		default:
			log.Debug().Str("dev_build", r.DevBuild).Str("prod_build", r.ProdBuild).Msg("nothing to deploy")
		}

		if err := sleep(ctx, t.Interval); err != nil {
			return "", err
		}
	}
}
