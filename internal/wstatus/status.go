// Package wstatus carries the tagged error categories used across the
// core: every public operation in channel, master, and worker returns
// an error that can be inspected with Code, rather than relying on
// string matching.
package wstatus

import "fmt"

// Code classifies an error into one of the categories the spec names.
type Code int

const (
	Nothing Code = iota
	IOError
	InvalidArgument
	NotSupported
	Corruption
	Timeout
)

func (c Code) String() string {
	switch c {
	case Nothing:
		return "nothing"
	case IOError:
		return "io_error"
	case InvalidArgument:
		return "invalid_argument"
	case NotSupported:
		return "not_supported"
	case Corruption:
		return "corruption"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Status is a tagged error: a Code plus the failing step and the
// underlying cause.
type Status struct {
	Code Code
	Step string
	Err  error
}

func (s *Status) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("%s: %s: %v", s.Code, s.Step, s.Err)
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Step)
}

func (s *Status) Unwrap() error { return s.Err }

func New(code Code, step string, err error) *Status {
	return &Status{Code: code, Step: step, Err: err}
}

func IOErrorf(step string, err error) *Status {
	return New(IOError, step, err)
}

func InvalidArgumentf(step, msg string) *Status {
	return New(InvalidArgument, step, fmt.Errorf("%s", msg))
}

func NotSupportedf(step, msg string) *Status {
	return New(NotSupported, step, fmt.Errorf("%s", msg))
}

func Corruptionf(step, msg string) *Status {
	return New(Corruption, step, fmt.Errorf("%s", msg))
}

func Timeoutf(step string, err error) *Status {
	return New(Timeout, step, err)
}

// Is reports whether err is a *Status carrying the given code.
func Is(err error, code Code) bool {
	s, ok := err.(*Status)
	if !ok {
		return false
	}
	return s.Code == code
}
