package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

type ConnectionStatus int32

const (
	NotConnected ConnectionStatus = iota
	Connecting
	Connected
)

func (s ConnectionStatus) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "not_connected":
		*s = NotConnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return errors.Errorf("unknown connection status %q", string(b))
	}
	return nil
}

// DeployRecord describes the outcome of one dispatch attempt.
type DeployRecord struct {
	DispatchID string    `json:"dispatch_id"`
	BuildID    string    `json:"build_id"`
	Source     string    `json:"source"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Snapshot struct {
	At              time.Time        `json:"at"`
	Connection      ConnectionStatus `json:"connection"`
	Candidate       string           `json:"candidate,omitempty"`
	CandidateSince  *time.Time       `json:"candidate_since,omitempty"`
	InProgress      bool             `json:"in_progress"`
	LocalAddress    string           `json:"local_address,omitempty"`
	ExternalAddress string           `json:"external_address,omitempty"`
	LastDeploy      *DeployRecord    `json:"last_deploy,omitempty"`
}

// State is the device state shared between the supervisor's tasks. Every
// field is either atomic or guarded by mu.
type State struct {
	connection atomic.Int32
	inProgress atomic.Bool

	mu              sync.Mutex
	candidate       string
	candidateSince  time.Time
	localAddress    string
	externalAddress string
	lastDeploy      *DeployRecord
}

func New() *State {
	s := &State{}
	s.connection.Store(int32(NotConnected))
	return s
}

func (s *State) ConnectionStatus() ConnectionStatus {
	return ConnectionStatus(s.connection.Load())
}

// SetConnectionStatus stores st and reports whether it differs from the
// previous value.
func (s *State) SetConnectionStatus(st ConnectionStatus) bool {
	return ConnectionStatus(s.connection.Swap(int32(st))) != st
}

// PublishCandidate fills the candidate slot. Publishing the id already held
// is a no-op and returns false.
func (s *State) PublishCandidate(buildID string) bool {
	if buildID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate == buildID {
		return false
	}
	s.candidate = buildID
	s.candidateSince = time.Now()
	return true
}

func (s *State) Candidate() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidate, s.candidate != ""
}

// ClearCandidate empties the slot only if it still holds buildID, so a
// candidate published while a deploy was in flight survives.
func (s *State) ClearCandidate(buildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate == "" || s.candidate != buildID {
		return false
	}
	s.candidate = ""
	s.candidateSince = time.Time{}
	return true
}

// TryBeginDispatch acquires the in-progress guard. Only one caller can hold
// it at a time.
func (s *State) TryBeginDispatch() bool {
	return s.inProgress.CompareAndSwap(false, true)
}

func (s *State) EndDispatch() {
	s.inProgress.Store(false)
}

func (s *State) InProgress() bool {
	return s.inProgress.Load()
}

func (s *State) SetAddresses(local, external string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if local != "" {
		s.localAddress = local
	}
	if external != "" {
		s.externalAddress = external
	}
}

func (s *State) RecordDeploy(rec DeployRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDeploy = &rec
}

func (s *State) LastDeploy() (DeployRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDeploy == nil {
		return DeployRecord{}, false
	}
	return *s.lastDeploy, true
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		At:         time.Now(),
		Connection: s.ConnectionStatus(),
		InProgress: s.InProgress(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Candidate = s.candidate
	if s.candidate != "" {
		since := s.candidateSince
		snap.CandidateSince = &since
	}
	snap.LocalAddress = s.localAddress
	snap.ExternalAddress = s.externalAddress
	if s.lastDeploy != nil {
		rec := *s.lastDeploy
		snap.LastDeploy = &rec
	}
	return snap
}
