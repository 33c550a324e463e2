package exam

import (
	"errors"
	"fmt"
)

// ErrNetwork marks question requests that failed in transport.
var ErrNetwork = errors.New("question request failed")

// ErrParse marks generator output that does not follow the question grammar.
var ErrParse = errors.New("malformed question text")

// Parser stage failures, each wrapped in a *ParseError.
var (
	ErrMissingQuestion = errors.New("missing Question: marker")
	ErrMissingOptions  = errors.New("missing Options: marker")
	ErrMissingAnswer   = errors.New("missing Correct Answer: marker")
	ErrMarkerOrder     = errors.New("markers out of order")
	ErrEmptySegment    = errors.New("empty segment")
)

// ErrSessionClosed is returned for intents sent after Close.
var ErrSessionClosed = errors.New("session closed")

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid session transition")

// ParseError reports which stage of the grammar rejected the input.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match any stage failure.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// TransitionError is returned for intents the current status does not accept.
type TransitionError struct {
	Intent string
	Status Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Intent, e.Status)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ErrorKind classifies a load failure for clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "unknown"
	}
}
