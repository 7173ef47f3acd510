package tasks

import (
	"context"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	SourceButton = "button"
	SourceManual = "manual"
)

type Deployer interface {
	DeployBuild(ctx context.Context, channelID, buildID string) error
}

// DeployRunner performs one deploy of a build to the production channel and
// records the outcome. It does not touch the in-progress guard; callers hold
// it around Deploy.
type DeployRunner struct {
	Client    Deployer
	ChannelID string
	State     *state.State
	Events    *bus.Emitter
	Timeout   time.Duration

	// OnDeployed runs after a successful deploy.
	OnDeployed func(buildID string)
}

func (r *DeployRunner) Deploy(ctx context.Context, buildID, source string) (state.DeployRecord, error) {
	rec := state.DeployRecord{
		DispatchID: uuid.NewString(),
		BuildID:    buildID,
		Source:     source,
		StartedAt:  time.Now(),
	}
	l := log.With().Str("dispatch", rec.DispatchID).Str("build", buildID).Str("source", source).Logger()
	l.Info().Str("channel", r.ChannelID).Msg("deploying build to production")
	r.Events.Emit(bus.TypeDispatchStarted, bus.DispatchStarted{DispatchID: rec.DispatchID, BuildID: buildID, Source: source, At: rec.StartedAt})

	dctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	err := r.Client.DeployBuild(dctx, r.ChannelID, buildID)
	rec.FinishedAt = time.Now()

	if err != nil {
		rec.Error = err.Error()
		l.Error().Err(err).Msg("deploy failed; candidate kept for retry")
	} else {
		rec.OK = true
		r.State.ClearCandidate(buildID)
		l.Info().Dur("took", rec.FinishedAt.Sub(rec.StartedAt)).Msg("deploy succeeded")
	}
	r.State.RecordDeploy(rec)
	r.Events.Emit(bus.TypeDispatchFinished, bus.DispatchFinished{
		DispatchID: rec.DispatchID,
		BuildID:    buildID,
		Source:     source,
		OK:         rec.OK,
		Error:      rec.Error,
		Duration:   rec.FinishedAt.Sub(rec.StartedAt),
		At:         rec.FinishedAt,
	})
	if rec.OK && r.OnDeployed != nil {
		r.OnDeployed(buildID)
	}
	return rec, errors.Wrap(err, "deploy build")
}
