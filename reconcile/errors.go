package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwner is returned when the acting uid does not own the post
	// or comment it is trying to edit or delete. This is a client-side
	// courtesy check; real enforcement belongs to the store's access
	// rules.
	ErrNotOwner = errors.New("not the owner")

	// ErrNotFound is returned when the targeted post or comment no
	// longer exists.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects an intent before any write is attempted. It is
// fully recoverable by user correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Stage identifies how far the profile cascade got before failing.
type Stage int

const (
	StageUser Stage = iota
	StagePosts
	StageComments
)

func (s Stage) String() string {
	switch s {
	case StageUser:
		return "profile"
	case StagePosts:
		return "posts"
	case StageComments:
		return "comments"
	default:
		return "unknown"
	}
}

// CascadeError reports the stage at which a profile update stopped.
// Writes from earlier stages are not rolled back; the denormalized
// copies they missed stay stale until a later profile update.
type CascadeError struct {
	Stage Stage
	Err   error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("profile update failed at %s stage: %v", e.Stage, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
