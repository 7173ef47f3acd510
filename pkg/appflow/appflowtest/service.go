// Package appflowtest provides an in-memory build service that behaves like
// the Appflow API for tests and the simulator.
package appflowtest

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/pkg/errors"
)

const (
	DevelopmentChannelID = "chan-dev"
	ProductionChannelID  = "chan-prod"
)

type DeployCall struct {
	ChannelID string
	BuildID   string
	At        time.Time
}

// Service is a concurrency-safe fake appflow.Client. A successful deploy to
// the production channel rebinds Production to the deployed build.
type Service struct {
	mu sync.Mutex

	builds   []appflow.Build
	channels []appflow.Channel
	deploys  []DeployCall

	listErr     error
	deployErr   error
	deployDelay time.Duration
	deployGate  chan struct{}
}

var _ appflow.Client = (*Service)(nil)

func New() *Service {
	return &Service{
		channels: []appflow.Channel{
			{ID: DevelopmentChannelID, Name: appflow.ChannelDevelopment},
			{ID: ProductionChannelID, Name: appflow.ChannelProduction},
		},
	}
}

// Promote binds buildID to the Development channel and records it as the
// latest build.
func (s *Service) Promote(buildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindLocked(appflow.ChannelDevelopment, buildID)
	s.builds = append([]appflow.Build{{
		Typename: "PackageBuild",
		ID:       buildID,
		Number:   int64(len(s.builds) + 1),
		UUID:     buildID,
		AppID:    "app",
	}}, s.builds...)
}

func (s *Service) SetProduction(buildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindLocked(appflow.ChannelProduction, buildID)
}

func (s *Service) bindLocked(name, buildID string) {
	for i := range s.channels {
		if s.channels[i].Name == name {
			s.channels[i].CurrentBuild = buildID
		}
	}
}

// FailLists makes ListBuilds and ListChannels return err until reset with nil.
func (s *Service) FailLists(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *Service) FailDeploys(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployErr = err
}

func (s *Service) SetDeployDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployDelay = d
}

// BlockDeploys makes DeployBuild wait until the returned release func is
// called (or the call's context ends).
func (s *Service) BlockDeploys() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.deployGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.deployGate == gate {
				s.deployGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Service) Deploys() []DeployCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeployCall{}, s.deploys...)
}

func (s *Service) ListBuilds(ctx context.Context) ([]appflow.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.builds) == 0 {
		return []appflow.Build{}, nil
	}
	return []appflow.Build{s.builds[0]}, nil
}

func (s *Service) ListChannels(ctx context.Context) ([]appflow.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]appflow.Channel{}, s.channels...), nil
}

func (s *Service) DeployBuild(ctx context.Context, channelID, buildID string) error {
	s.mu.Lock()
	s.deploys = append(s.deploys, DeployCall{ChannelID: channelID, BuildID: buildID, At: time.Now()})
	gate := s.deployGate
	delay := s.deployDelay
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &appflow.Failure{Kind: appflow.KindTransient, Op: "deploy", Err: ctx.Err()}
		}
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return &appflow.Failure{Kind: appflow.KindTransient, Op: "deploy", Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deployErr != nil {
		return s.deployErr
	}
	found := false
	for i := range s.channels {
		if s.channels[i].ID == channelID {
			s.channels[i].CurrentBuild = buildID
			found = true
		}
	}
	if !found {
		return &appflow.Failure{Kind: appflow.KindDeploy, Op: "deploy", Status: 404, Err: errors.Errorf("unknown channel %q", channelID)}
	}
	return nil
}
