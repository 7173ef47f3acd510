package appflow

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindTransient Kind = "transient"
	KindMalformed Kind = "malformed"
	KindDeploy    Kind = "deploy"
)

var (
	ErrTransient = errors.New(string(KindTransient))
	ErrMalformed = errors.New(string(KindMalformed))
	ErrDeploy    = errors.New(string(KindDeploy))
)

// Failure is returned by every Client operation that did not produce data.
type Failure struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s failure: op=%q", f.Kind, f.Op)
	if f.Status != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, f.Status)
	}
	if f.Err != nil {
		msg = msg + ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	switch target {
	case ErrTransient:
		return f.Kind == KindTransient
	case ErrMalformed:
		return f.Kind == KindMalformed
	case ErrDeploy:
		return f.Kind == KindDeploy
	}
	return false
}

// KindOf returns the failure kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func IsTransient(err error) bool     { return errors.Is(err, ErrTransient) }
func IsMalformed(err error) bool     { return errors.Is(err, ErrMalformed) }
func IsDeployFailure(err error) bool { return errors.Is(err, ErrDeploy) }

func malformed(op string, format string, args ...any) *Failure {
	return &Failure{Kind: KindMalformed, Op: op, Err: errors.Errorf(format, args...)}
}
