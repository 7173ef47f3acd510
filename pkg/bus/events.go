package bus

import "time"

type ConnectionChanged struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

type LinkEstablished struct {
	LocalAddress    string    `json:"local_address"`
	ExternalAddress string    `json:"external_address"`
	At              time.Time `json:"at"`
}

type ReadinessPolled struct {
	OK           bool      `json:"ok"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	DevBuild     string    `json:"dev_build,omitempty"`
	ProdBuild    string    `json:"prod_build,omitempty"`
	LatestNumber int64     `json:"latest_number,omitempty"`
	Ready        bool      `json:"ready"`
	At           time.Time `json:"at"`
}

type CandidatePublished struct {
	BuildID   string    `json:"build_id"`
	ProdBuild string    `json:"prod_build,omitempty"`
	At        time.Time `json:"at"`
}

type ButtonChanged struct {
	Pressed bool      `json:"pressed"`
	At      time.Time `json:"at"`
}

type DispatchStarted struct {
	DispatchID string    `json:"dispatch_id"`
	BuildID    string    `json:"build_id"`
	Source     string    `json:"source"`
	At         time.Time `json:"at"`
}

type DispatchFinished struct {
	DispatchID string        `json:"dispatch_id"`
	BuildID    string        `json:"build_id"`
	Source     string        `json:"source"`
	OK         bool          `json:"ok"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	At         time.Time     `json:"at"`
}

type DispatchAbandoned struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type DispatchIgnored struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type TaskFailed struct {
	Task      string    `json:"task"`
	Error     string    `json:"error"`
	Panicked  bool      `json:"panicked"`
	Restarted bool      `json:"restarted"`
	At        time.Time `json:"at"`
}
