// Package event turns complete stream fragments into typed analyzer events.
package event

import (
	"errors"
	"fmt"

	"github.com/dkoosis/kind2run/pkg/outcome"
	"github.com/dkoosis/kind2run/pkg/stream"
)

var (
	// ErrUnknownAnswer is returned for an answer literal outside
	// valid, falsifiable, unknown and inconsistent.
	ErrUnknownAnswer = errors.New("unknown answer")
	// ErrUnknownLogClass is returned for a log severity outside the known classes.
	ErrUnknownLogClass = errors.New("unknown log class")
	// ErrMalformed is returned when a fragment is not well-formed markup.
	ErrMalformed = errors.New("malformed fragment")
)

// Event is one of Progress, PropertyResolved, ScopeEnter, ScopeExit or Log.
type Event interface {
	event()
}

// Progress reports the depth an engine has reached.
type Progress struct {
	Source string
	K      int
}

// PropertyResolved carries the verdict for a named property.
type PropertyResolved struct {
	Name     string
	Property outcome.Property
}

// ScopeEnter opens an analysis of the named top-level node.
type ScopeEnter struct {
	Name string
}

// ScopeExit closes the current analysis.
type ScopeExit struct{}

// Log is one diagnostic line emitted by the analyzer.
type Log struct {
	Class  LogClass
	Source string
	Text   string
}

func (Progress) event()         {}
func (PropertyResolved) event() {}
func (ScopeEnter) event()       {}
func (ScopeExit) event()        {}
func (Log) event()              {}

// LogClass is a log severity.
type LogClass string

const (
	LogOff   LogClass = "off"
	LogFatal LogClass = "fatal"
	LogError LogClass = "error"
	LogWarn  LogClass = "warn"
	LogNote  LogClass = "note"
	LogInfo  LogClass = "info"
	LogDebug LogClass = "debug"
	LogTrace LogClass = "trace"
)

// ParseLogClass validates a wire severity.
func ParseLogClass(s string) (LogClass, error) {
	switch c := LogClass(s); c {
	case LogOff, LogFatal, LogError, LogWarn, LogNote, LogInfo, LogDebug, LogTrace:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLogClass, s)
}

// ParseError wraps a failure with the fragment that caused it.
type ParseError struct {
	Fragment stream.Fragment
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s element: %v", e.Fragment.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
