package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBreak is returned when a schedule entry is malformed.
	ErrInvalidBreak = errors.New("invalid ad break")

	// ErrDuplicateBreak is returned when two schedule entries share an id.
	ErrDuplicateBreak = errors.New("duplicate ad break id")

	// ErrNotInline is returned by InlineProvider for references without an
	// inline payload.
	ErrNotInline = errors.New("ad reference has no inline creative")

	// ErrNoLocator is returned when a reference has neither payload nor locator.
	ErrNoLocator = errors.New("ad reference has no creative locator")

	// ErrEmptyBreak is returned when a break resolves to no playable ads.
	ErrEmptyBreak = errors.New("ad break has no ads")

	// ErrSessionDestroyed is returned by operations on a destroyed session.
	ErrSessionDestroyed = errors.New("session destroyed")

	// ErrSessionStarted is returned when Start is called more than once.
	ErrSessionStarted = errors.New("session already started")
)

// ResolutionError reports that a break's creative could not be produced.
// The break is skipped and content resumes.
type ResolutionError struct {
	BreakID string
	AdID    string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.AdID != "" {
		return fmt.Sprintf("resolve ad %s of break %s: %v", e.AdID, e.BreakID, e.Err)
	}
	return fmt.Sprintf("resolve break %s: %v", e.BreakID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PlayerError reports that the ad player could not load or play a creative.
// It is handled like a ResolutionError.
type PlayerError struct {
	BreakID string
	AdID    string
	Err     error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("ad player failed on ad %s of break %s: %v", e.AdID, e.BreakID, e.Err)
}

func (e *PlayerError) Unwrap() error { return e.Err }

// FatalSessionError reports that a required collaborator was unavailable.
// The session is in StateError and must be rebuilt.
type FatalSessionError struct {
	Op  string
	Err error
}

func (e *FatalSessionError) Error() string {
	return fmt.Sprintf("fatal session error: %s: %v", e.Op, e.Err)
}

func (e *FatalSessionError) Unwrap() error { return e.Err }
